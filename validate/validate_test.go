package validate

import "testing"

func TestCheckPhone(t *testing.T) {
	valid := []string{"9876543210", "6000000000", " 7012345678 "}
	for _, p := range valid {
		if err := CheckPhone(p); err != nil {
			t.Errorf("CheckPhone(%q): unexpected error: %v", p, err)
		}
	}

	invalid := []string{"", "12345", "5123456789", "98765432100", "98765abcde", "+919876543210"}
	for _, p := range invalid {
		if err := CheckPhone(p); err == nil {
			t.Errorf("CheckPhone(%q): expected error, got nil", p)
		}
	}
}

func TestCheckName(t *testing.T) {
	if err := CheckName("Ra"); err != nil {
		t.Errorf("two-character name should pass: %v", err)
	}
	if err := CheckName(" a "); err == nil {
		t.Error("single-character name should fail")
	}
	if err := CheckName(""); err == nil {
		t.Error("empty name should fail")
	}
}

func TestCheckPhoneTag(t *testing.T) {
	type req struct {
		Phone string `validate:"required,inphone"`
	}

	if err := Check(req{Phone: "9876543210"}); err != nil {
		t.Errorf("valid phone rejected: %v", err)
	}
	if err := Check(req{Phone: "5123456789"}); err == nil {
		t.Error("phone with leading digit below 6 should be rejected")
	}
}
