package booking

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/garagely/api/cms"
)

// Draft is the accumulating answer set of the conversation. It starts empty
// and is patched one step at a time; nothing here is durable until a phone
// number is captured.
type Draft struct {
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	FuelType     string `json:"fuelType,omitempty"`
	Area         string `json:"area,omitempty"`
	Address      string `json:"address,omitempty"`
	ServiceType  string `json:"serviceType,omitempty"`
	Fulfillment  string `json:"fulfillment,omitempty"`
	Date         string `json:"date,omitempty"`
	TimeSlot     string `json:"timeSlot,omitempty"`
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	BookingRef   string `json:"bookingRef,omitempty"`
	PaymentID    string `json:"paymentId,omitempty"`
}

// apply writes a patch into the draft. Re-applying a field overwrites it.
func (d *Draft) apply(p Patch) {
	for field, value := range p {
		switch field {
		case FieldManufacturer:
			d.Manufacturer = value
		case FieldModel:
			d.Model = value
		case FieldFuelType:
			d.FuelType = value
		case FieldArea:
			d.Area = value
		case FieldAddress:
			d.Address = value
		case FieldServiceType:
			d.ServiceType = value
		case FieldFulfillment:
			d.Fulfillment = value
		case FieldDate:
			d.Date = value
		case FieldTimeSlot:
			d.TimeSlot = value
		case FieldName:
			d.Name = value
		case FieldPhone:
			d.Phone = value
		}
	}
}

// SummaryText renders the draft as the human-readable recap used on the
// summary step and in the WhatsApp message.
func (d Draft) SummaryText() string {
	var b strings.Builder

	add := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}

	add("Car", strings.TrimSpace(d.Manufacturer+" "+d.Model))
	add("Fuel", d.FuelType)
	add("Service", d.ServiceType)
	switch d.Fulfillment {
	case "pickup":
		add("Pickup", "free pickup & drop")
	case "walkin":
		add("Visit", "walk-in")
	}
	if d.Area != "" {
		add("Area", d.Area)
	} else {
		add("Address", d.Address)
	}
	add("Date", d.Date)
	add("Slot", d.TimeSlot)
	add("Name", d.Name)
	add("Phone", d.Phone)
	add("Booking ref", d.BookingRef)

	return strings.TrimRight(b.String(), "\n")
}

// WhatsAppLink builds the outbound deep link with the summary pre-filled.
func (d Draft) WhatsAppLink(supportPhone string) string {
	text := "Hi! I'd like to book a car service.\n" + d.SummaryText()
	return "https://wa.me/" + supportPhone + "?text=" + url.QueryEscape(text)
}

// lead converts the draft into a remote mirror payload; only captured fields
// are sent.
func (d Draft) lead() cms.Lead {
	var l cms.Lead

	set := func(dst **string, v string) {
		if v != "" {
			vv := v
			*dst = &vv
		}
	}

	set(&l.Manufacturer, d.Manufacturer)
	set(&l.Model, d.Model)
	set(&l.FuelType, d.FuelType)
	set(&l.Area, d.Area)
	set(&l.Address, d.Address)
	set(&l.ServiceType, d.ServiceType)
	set(&l.Fulfillment, d.Fulfillment)
	set(&l.Date, d.Date)
	set(&l.TimeSlot, d.TimeSlot)
	set(&l.Name, d.Name)
	set(&l.Phone, d.Phone)
	set(&l.BookingRef, d.BookingRef)
	set(&l.PaymentID, d.PaymentID)

	return l
}
