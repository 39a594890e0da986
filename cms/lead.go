package cms

import (
	"context"
	"fmt"
	"net/http"
)

type LeadStatus string

const (
	LeadOpen      LeadStatus = "open"
	LeadCompleted LeadStatus = "completed"
)

// Lead mirrors the booking draft on the remote store. Fields are pointers so
// partial updates only touch what changed.
type Lead struct {
	Manufacturer *string     `json:"manufacturer,omitempty"`
	Model        *string     `json:"model,omitempty"`
	FuelType     *string     `json:"fuelType,omitempty"`
	Area         *string     `json:"area,omitempty"`
	Address      *string     `json:"address,omitempty"`
	ServiceType  *string     `json:"serviceType,omitempty"`
	Fulfillment  *string     `json:"fulfillment,omitempty"`
	Date         *string     `json:"date,omitempty"`
	TimeSlot     *string     `json:"timeSlot,omitempty"`
	Name         *string     `json:"name,omitempty"`
	Phone        *string     `json:"phone,omitempty"`
	BookingRef   *string     `json:"bookingRef,omitempty"`
	PaymentID    *string     `json:"paymentId,omitempty"`
	Status       *LeadStatus `json:"status,omitempty"`
}

type createdLead struct {
	ID int `json:"id"`
}

// CreateLead force-creates a new booking lead and returns its identifier.
func (c *Client) CreateLead(ctx context.Context, lead Lead) (int, error) {
	var created createdLead
	if err := c.do(ctx, http.MethodPost, "/chatbot-bookings", lead, &created); err != nil {
		return 0, fmt.Errorf("creating booking lead: %w", err)
	}
	return created.ID, nil
}

// UpdateLead patches an existing lead with the non-nil fields.
func (c *Client) UpdateLead(ctx context.Context, id int, lead Lead) error {
	path := fmt.Sprintf("/chatbot-bookings/%d", id)
	if err := c.do(ctx, http.MethodPut, path, lead, nil); err != nil {
		return fmt.Errorf("updating booking lead[%d]: %w", id, err)
	}
	return nil
}
