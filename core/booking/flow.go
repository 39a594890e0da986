// Package booking drives the scripted lead-capture conversation: vehicle
// selection, location, service type, scheduling, contact and confirmation.
// The step table is a fixed directed graph; dynamic steps regenerate their
// option sets from the catalog, everything else is static.
package booking

import "fmt"

type StepID string

const (
	StepWelcome      StepID = "welcome"
	StepManufacturer StepID = "manufacturer"
	StepModel        StepID = "model"
	StepFuelType     StepID = "fuel_type"
	StepLocation     StepID = "location"
	StepAddress      StepID = "address"
	StepServiceType  StepID = "service_type"
	StepFulfillment  StepID = "fulfillment"
	StepDate         StepID = "date"
	StepTimeSlot     StepID = "time_slot"
	StepName         StepID = "name"
	StepPhone        StepID = "phone"
	StepSummary      StepID = "summary"
	StepConfirmed    StepID = "confirmed"
	StepSupport      StepID = "support"
	StepWhatsApp     StepID = "whatsapp"
)

// Field names a draft slot an option patch can write.
type Field string

const (
	FieldManufacturer Field = "manufacturer"
	FieldModel        Field = "model"
	FieldFuelType     Field = "fuelType"
	FieldArea         Field = "area"
	FieldAddress      Field = "address"
	FieldServiceType  Field = "serviceType"
	FieldFulfillment  Field = "fulfillment"
	FieldDate         Field = "date"
	FieldTimeSlot     Field = "timeSlot"
	FieldName         Field = "name"
	FieldPhone        Field = "phone"
)

// Patch is the draft mutation an option carries.
type Patch map[Field]string

type Option struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Target StepID `json:"-"`
	Patch  Patch  `json:"-"`
}

type InputKind string

const (
	InputText  InputKind = "text"
	InputPhone InputKind = "phone"
	InputDate  InputKind = "date"
)

type InputSpec struct {
	Kind        InputKind `json:"kind"`
	Placeholder string    `json:"placeholder"`
	Target      StepID    `json:"-"`
	Field       Field     `json:"-"`
}

// Step describes one node of the conversation graph. Dynamic steps leave
// Options empty and have their option set generated per request.
type Step struct {
	ID      StepID
	Prompt  string
	Options []Option
	Input   *InputSpec
	Dynamic bool
}

// steps is the static conversation graph. It is assembled once at package
// init and treated as read-only from then on.
var steps = map[StepID]Step{
	StepWelcome: {
		ID:     StepWelcome,
		Prompt: "Hi! I can help you book a car service in under a minute. What would you like to do?",
		Options: []Option{
			{ID: "book", Label: "Book a service", Target: StepManufacturer},
			{ID: "support", Label: "Talk to support", Target: StepSupport},
			{ID: "whatsapp", Label: "Continue on WhatsApp", Target: StepWhatsApp},
		},
	},
	StepManufacturer: {
		ID:      StepManufacturer,
		Prompt:  "Which brand is your car?",
		Dynamic: true,
	},
	StepModel: {
		ID:      StepModel,
		Prompt:  "Great. Which model?",
		Dynamic: true,
	},
	StepFuelType: {
		ID:      StepFuelType,
		Prompt:  "And the fuel type?",
		Dynamic: true,
	},
	StepLocation: {
		ID:      StepLocation,
		Prompt:  "Where should we pick the car from?",
		Dynamic: true,
	},
	StepAddress: {
		ID:     StepAddress,
		Prompt: "Please type your address.",
		Input: &InputSpec{
			Kind:        InputText,
			Placeholder: "Flat, street, landmark",
			Target:      StepServiceType,
			Field:       FieldAddress,
		},
	},
	StepServiceType: {
		ID:     StepServiceType,
		Prompt: "What kind of service do you need?",
		Options: []Option{
			{ID: "periodic", Label: "Periodic Service", Target: StepFulfillment, Patch: Patch{FieldServiceType: "Periodic Service"}},
			{ID: "ac", Label: "AC Service", Target: StepFulfillment, Patch: Patch{FieldServiceType: "AC Service"}},
			{ID: "denting", Label: "Denting & Painting", Target: StepFulfillment, Patch: Patch{FieldServiceType: "Denting & Painting"}},
			{ID: "wash", Label: "Car Wash", Target: StepFulfillment, Patch: Patch{FieldServiceType: "Car Wash"}},
		},
	},
	StepFulfillment: {
		ID:     StepFulfillment,
		Prompt: "How would you like to get the service done?",
		Options: []Option{
			{ID: "pickup", Label: "Free pickup & drop", Target: StepDate, Patch: Patch{FieldFulfillment: "pickup"}},
			{ID: "walkin", Label: "I'll walk in", Target: StepDate, Patch: Patch{FieldFulfillment: "walkin"}},
		},
	},
	StepDate: {
		ID:     StepDate,
		Prompt: "Which date works for you? (DD-MM-YYYY)",
		Input: &InputSpec{
			Kind:        InputDate,
			Placeholder: "DD-MM-YYYY",
			Target:      StepTimeSlot,
			Field:       FieldDate,
		},
	},
	StepTimeSlot: {
		ID:      StepTimeSlot,
		Prompt:  "Pick a time slot.",
		Dynamic: true,
	},
	StepName: {
		ID:     StepName,
		Prompt: "Almost done! What's your name?",
		Input: &InputSpec{
			Kind:        InputText,
			Placeholder: "Your name",
			Target:      StepPhone,
			Field:       FieldName,
		},
	},
	StepPhone: {
		ID:     StepPhone,
		Prompt: "And your mobile number? Our service advisor will reach you on it.",
		Input: &InputSpec{
			Kind:        InputPhone,
			Placeholder: "10-digit mobile number",
			Target:      StepSummary,
			Field:       FieldPhone,
		},
	},
	StepSummary: {
		ID:     StepSummary,
		Prompt: "Here's your booking summary. Shall I confirm it?",
		Options: []Option{
			{ID: "confirm", Label: "Confirm booking", Target: StepConfirmed},
			{ID: "whatsapp", Label: "Share on WhatsApp instead", Target: StepWhatsApp},
			{ID: "restart", Label: "Start over", Target: StepWelcome},
		},
	},
	StepConfirmed: {
		ID:     StepConfirmed,
		Prompt: "Your service is booked! Keep the reference handy.",
		Options: []Option{
			{ID: "restart", Label: "Book another service", Target: StepWelcome},
			{ID: "support", Label: "Contact support", Target: StepSupport},
		},
	},
	StepSupport: {
		ID:     StepSupport,
		Prompt: "Our support team is happy to help. Call us or start over anytime.",
		Options: []Option{
			{ID: "restart", Label: "Start over", Target: StepWelcome},
		},
	},
	StepWhatsApp: {
		ID:     StepWhatsApp,
		Prompt: "Taking you to WhatsApp with your details pre-filled.",
		Options: []Option{
			{ID: "restart", Label: "Start over", Target: StepWelcome},
		},
	},
}

func stepByID(id StepID) (Step, error) {
	s, ok := steps[id]
	if !ok {
		return Step{}, fmt.Errorf("unknown step %q", id)
	}
	return s, nil
}
