package validate

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
)

var validate *validator.Validate

var translator ut.Translator

// Indian mobile numbers: exactly 10 digits, first digit 6-9.
var phoneRx = regexp.MustCompile(`^[6-9][0-9]{9}$`)

func init() {

	validate = validator.New()

	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterValidation("inphone", func(fl validator.FieldLevel) bool {
		return phoneRx.MatchString(fl.Field().String())
	})
	validate.RegisterTranslation("inphone", translator,
		func(ut ut.Translator) error {
			return ut.Add("inphone", "{0} must be a valid 10-digit mobile number", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("inphone", fe.Field())
			return t
		},
	)
}

func Check(val any) error {
	if err := validate.Struct(val); err != nil {

		verrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}

		if len(verrors) < 1 {
			return nil
		}

		return errors.New(verrors[0].Translate(translator))
	}

	return nil
}

// CheckPhone validates a standalone mobile number outside of struct tags.
func CheckPhone(phone string) error {
	if !phoneRx.MatchString(strings.TrimSpace(phone)) {
		return errors.New("please enter a valid 10-digit mobile number")
	}
	return nil
}

// CheckName validates a free-text contact name.
func CheckName(name string) error {
	if len(strings.TrimSpace(name)) < 2 {
		return errors.New("please enter your full name (at least 2 characters)")
	}
	return nil
}

// GenerateID returns a fresh identifier for outbound requests that need one,
// such as payment idempotency keys.
func GenerateID() string {
	return uuid.NewString()
}
