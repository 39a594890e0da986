package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/garagely/api/cms"
	"github.com/garagely/api/core/booking/catalog"
	"github.com/garagely/api/random"
	"github.com/garagely/api/syncq"
	"github.com/garagely/api/validate"
)

// ErrSelectionInFlight is returned when the same option is tapped again
// while its transition is still being presented.
var ErrSelectionInFlight = errors.New("selection already being processed")

type Entry struct {
	From string    `json:"from"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// Conversation is one visitor's flow state. The remote lead identifier lives
// only here for the lifetime of the conversation; losing the conversation
// forks a new lead on the next save.
type Conversation struct {
	mu         sync.Mutex
	current    StepID
	draft      Draft
	transcript []Entry
	leadID     int
	completed  bool

	// selection-in-progress guard
	inflightOpt   string
	inflightStep  StepID
	inflightUntil time.Time
}

func (c *Conversation) append(from, text string) {
	c.transcript = append(c.transcript, Entry{From: from, Text: text, Time: time.Now().UTC()})
}

// Draft returns a copy of the accumulated answers.
func (c *Conversation) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SetReceipt records the provider payment id after a successful checkout.
func (c *Conversation) SetReceipt(paymentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.PaymentID = paymentID
}

func (c *Conversation) reset() {
	c.draft = Draft{}
	c.leadID = 0
	c.completed = false
	c.inflightOpt = ""
}

// Flow evaluates conversations against the static step table and the
// catalog.
type Flow struct {
	catalog       *catalog.Catalog
	supportPhone  string
	stepDelay     time.Duration
	redirectDelay time.Duration
}

func NewFlow(cat *catalog.Catalog, supportPhone string, stepDelay, redirectDelay time.Duration) *Flow {
	return &Flow{
		catalog:       cat,
		supportPhone:  supportPhone,
		stepDelay:     stepDelay,
		redirectDelay: redirectDelay,
	}
}

// NewConversation starts a fresh conversation at the welcome step with an
// empty draft.
func (f *Flow) NewConversation() *Conversation {
	c := &Conversation{current: StepWelcome}
	c.append("bot", steps[StepWelcome].Prompt)
	return c
}

// View is what the client renders for the current step.
type View struct {
	Step            StepID     `json:"step"`
	Prompt          string     `json:"prompt"`
	Error           string     `json:"error,omitempty"`
	Options         []Option   `json:"options,omitempty"`
	Input           *InputSpec `json:"input,omitempty"`
	Draft           Draft      `json:"draft"`
	Transcript      []Entry    `json:"transcript"`
	DelayMS         int        `json:"delayMs"`
	RedirectURL     string     `json:"redirectUrl,omitempty"`
	RedirectDelayMS int        `json:"redirectDelayMs,omitempty"`
}

func (f *Flow) View(c *Conversation) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return f.view(c)
}

func (f *Flow) view(c *Conversation) View {
	step := steps[c.current]

	v := View{
		Step:       step.ID,
		Prompt:     step.Prompt,
		Options:    f.optionsFor(step, c.draft),
		Input:      step.Input,
		Draft:      c.draft,
		Transcript: append([]Entry(nil), c.transcript...),
		DelayMS:    int(f.stepDelay / time.Millisecond),
	}

	switch step.ID {
	case StepSummary:
		v.Prompt = step.Prompt + "\n\n" + c.draft.SummaryText()
	case StepWhatsApp:
		v.RedirectURL = c.draft.WhatsAppLink(f.supportPhone)
		v.RedirectDelayMS = int(f.redirectDelay / time.Millisecond)
	}

	return v
}

func optID(prefix, value string) string {
	slug := strings.ToLower(strings.ReplaceAll(value, " ", "-"))
	return prefix + "-" + slug
}

// optionsFor returns a step's selectable options, generating them from the
// catalog for dynamic steps.
func (f *Flow) optionsFor(step Step, d Draft) []Option {
	if !step.Dynamic {
		return step.Options
	}

	var opts []Option
	switch step.ID {
	case StepManufacturer:
		for _, name := range f.catalog.ManufacturerNames() {
			opts = append(opts, Option{
				ID:     optID("mf", name),
				Label:  name,
				Target: StepModel,
				Patch:  Patch{FieldManufacturer: name},
			})
		}

	case StepModel:
		for _, name := range f.catalog.ModelNames(d.Manufacturer) {
			opts = append(opts, Option{
				ID:     optID("md", name),
				Label:  name,
				Target: StepFuelType,
				Patch:  Patch{FieldModel: name},
			})
		}

	case StepFuelType:
		for _, v := range f.catalog.Variants(d.Manufacturer, d.Model) {
			opts = append(opts, Option{
				ID:     optID("fl", v.FuelType),
				Label:  fmt.Sprintf("%s (₹%d)", v.FuelType, v.Price),
				Target: StepLocation,
				Patch:  Patch{FieldFuelType: v.FuelType},
			})
		}

	case StepLocation:
		for _, area := range f.catalog.Areas {
			opts = append(opts, Option{
				ID:     optID("ar", area),
				Label:  area,
				Target: StepServiceType,
				Patch:  Patch{FieldArea: area},
			})
		}
		opts = append(opts, Option{
			ID:     "ar-other",
			Label:  "Somewhere else (type address)",
			Target: StepAddress,
		})

	case StepTimeSlot:
		for _, slot := range f.catalog.TimeSlots {
			opts = append(opts, Option{
				ID:     optID("ts", slot),
				Label:  slot,
				Target: StepName,
				Patch:  Patch{FieldTimeSlot: slot},
			})
		}
	}

	return opts
}

func (f *Flow) findOption(stepID StepID, d Draft, optionID string) (Option, error) {
	step, err := stepByID(stepID)
	if err != nil {
		return Option{}, err
	}

	for _, opt := range f.optionsFor(step, d) {
		if opt.ID == optionID {
			return opt, nil
		}
	}
	return Option{}, fmt.Errorf("option %q not available on step %q", optionID, stepID)
}

// Select processes a tapped option. While a prior selection is still inside
// its presentation window, tapping the same option again is rejected; a
// different option from the same step performs the selection-changed
// correction: the draft field is overwritten and the flow continues from the
// new target. The returned bool reports whether the draft should be mirrored
// to the remote store.
func (f *Flow) Select(c *Conversation, optionID string) (View, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if c.inflightOpt != "" && now.Before(c.inflightUntil) {
		if c.inflightOpt == optionID {
			return View{}, false, ErrSelectionInFlight
		}

		// A different option from the step the in-flight selection came
		// from is a correction: overwrite and continue from its target.
		// Anything else is a selection on the newly presented step.
		if opt, err := f.findOption(c.inflightStep, c.draft, optionID); err == nil {
			c.draft.apply(opt.Patch)
			c.append("system", "Changed selection to "+opt.Label)
			return f.advance(c, c.inflightStep, opt, now)
		}
	}

	opt, err := f.findOption(c.current, c.draft, optionID)
	if err != nil {
		return View{}, false, err
	}

	c.draft.apply(opt.Patch)
	c.append("user", opt.Label)
	return f.advance(c, c.current, opt, now)
}

func (f *Flow) advance(c *Conversation, from StepID, opt Option, now time.Time) (View, bool, error) {
	c.inflightOpt = opt.ID
	c.inflightStep = from
	c.inflightUntil = now.Add(f.stepDelay)

	if opt.Target == StepWelcome {
		c.reset()
		c.append("system", "Starting over.")
	}

	c.current = opt.Target

	persist := false
	if c.current == StepConfirmed {
		if c.draft.BookingRef == "" {
			c.draft.BookingRef = "GR-" + strings.ToUpper(random.String(8))
		}
		c.completed = true
		persist = c.draft.Phone != "" || c.leadID != 0
	} else if c.draft.Phone != "" {
		persist = true
	}

	// A dynamic step with nothing to offer falls back to support rather
	// than dead-ending the conversation.
	next := steps[c.current]
	if next.Dynamic && len(f.optionsFor(next, c.draft)) == 0 {
		c.append("bot", "Sorry, we don't have options for that yet.")
		c.current = StepSupport
		next = steps[StepSupport]
	}

	c.append("bot", next.Prompt)
	return f.view(c), persist, nil
}

// Input processes a free-text answer for the current step. Validation
// failures re-prompt the same step with an inline error and leave the draft
// untouched.
func (f *Flow) Input(c *Conversation, text string) (View, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	step := steps[c.current]
	if step.Input == nil {
		return View{}, false, fmt.Errorf("step %q does not accept text input", c.current)
	}

	text = strings.TrimSpace(text)

	var verr error
	switch step.Input.Kind {
	case InputPhone:
		verr = validate.CheckPhone(text)
	case InputDate:
		if _, err := time.Parse("02-01-2006", text); err != nil {
			verr = errors.New("please enter the date as DD-MM-YYYY")
		}
	case InputText:
		verr = validate.CheckName(text)
	}

	if verr != nil {
		v := f.view(c)
		v.Error = verr.Error()
		return v, false, nil
	}

	c.draft.apply(Patch{step.Input.Field: text})
	c.append("user", text)
	c.current = step.Input.Target
	c.append("bot", steps[c.current].Prompt)

	// Phone capture is the durability trigger: the first capture force-
	// creates the remote lead, later mutations patch it.
	persist := c.draft.Phone != ""

	return f.view(c), persist, nil
}

// LeadJob builds the sync-queue job mirroring the conversation's draft to
// the remote store: create on first delivery, partial updates after. The
// remote identifier is written back into the conversation on success.
func (f *Flow) LeadJob(c *Conversation, client *cms.Client) syncq.Job {
	return func(ctx context.Context) error {
		c.mu.Lock()
		leadID := c.leadID
		lead := c.draft.lead()
		if c.completed {
			st := cms.LeadCompleted
			lead.Status = &st
		}
		c.mu.Unlock()

		if leadID == 0 {
			id, err := client.CreateLead(ctx, lead)
			if err != nil {
				return err
			}
			c.mu.Lock()
			c.leadID = id
			c.mu.Unlock()
			return nil
		}

		return client.UpdateLead(ctx, leadID, lead)
	}
}
