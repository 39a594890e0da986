// Package cart holds the cart and pricing engine. The cart itself is a plain
// value: handlers load it from the session cache, mutate it, and write it
// back, while remote mirroring happens asynchronously through the Syncer.
package cart

import "fmt"

type Kind string

const (
	KindRegular  Kind = "regular"
	KindDoorstep Kind = "doorstep"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindRegular:
		return KindRegular, nil
	case KindDoorstep:
		return KindDoorstep, nil
	}
	return "", fmt.Errorf("unknown line kind %q", s)
}

// Snapshot is the denormalized catalog entry captured at add-time, so the
// cart keeps rendering even if the catalog entry changes later. Doorstep
// lines carry their extra payload here.
type Snapshot struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Doorstep    *DoorstepInfo `json:"doorstep,omitempty"`
}

type DoorstepInfo struct {
	PickupSlot string `json:"pickupSlot,omitempty"`
	Area       string `json:"area,omitempty"`
}

type Line struct {
	ServiceID string   `json:"serviceId"`
	Kind      Kind     `json:"kind"`
	Snapshot  Snapshot `json:"snapshot"`
	Quantity  int      `json:"quantity"`
	UnitPrice int      `json:"unitPrice"`
	LineTotal int      `json:"lineTotal"`
}

// Describe renders a transcript/receipt label for the line.
func (l Line) Describe() string {
	switch l.Kind {
	case KindDoorstep:
		return fmt.Sprintf("%s (doorstep) x%d", l.Snapshot.Name, l.Quantity)
	default:
		return fmt.Sprintf("%s x%d", l.Snapshot.Name, l.Quantity)
	}
}

type Coupon struct {
	Code           string `json:"code"`
	DiscountAmount int    `json:"discountAmount"`
}

// Cart is the serialized cart state. Lines keep insertion order. At most one
// line exists per (ServiceID, Kind) pair and at most one coupon is active.
type Cart struct {
	Lines  []Line  `json:"lines"`
	Coupon *Coupon `json:"coupon,omitempty"`
}

func (c *Cart) find(serviceID string, kind Kind) int {
	for i, l := range c.Lines {
		if l.ServiceID == serviceID && l.Kind == kind {
			return i
		}
	}
	return -1
}

// Add appends a new line with quantity 1, or bumps the quantity of the
// existing (serviceID, kind) line. It cannot fail.
func (c *Cart) Add(serviceID string, kind Kind, snap Snapshot, unitPrice int) {
	if i := c.find(serviceID, kind); i >= 0 {
		c.Lines[i].Quantity++
		c.Lines[i].LineTotal = c.Lines[i].UnitPrice * c.Lines[i].Quantity
		return
	}

	c.Lines = append(c.Lines, Line{
		ServiceID: serviceID,
		Kind:      kind,
		Snapshot:  snap,
		Quantity:  1,
		UnitPrice: unitPrice,
		LineTotal: unitPrice,
	})
}

// SetQuantity updates a line's quantity; n <= 0 removes the line.
func (c *Cart) SetQuantity(serviceID string, kind Kind, n int) {
	if n <= 0 {
		c.Remove(serviceID, kind)
		return
	}

	if i := c.find(serviceID, kind); i >= 0 {
		c.Lines[i].Quantity = n
		c.Lines[i].LineTotal = c.Lines[i].UnitPrice * n
	}
}

// Remove drops the line if present. Removing an absent line is a no-op.
func (c *Cart) Remove(serviceID string, kind Kind) {
	i := c.find(serviceID, kind)
	if i < 0 {
		return
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
}

func (c *Cart) Clear() {
	c.Lines = nil
	c.Coupon = nil
}

// ApplyCoupon replaces any active coupon; discounts never stack.
func (c *Cart) ApplyCoupon(cp Coupon) {
	c.Coupon = &cp
}

func (c *Cart) RemoveCoupon() {
	c.Coupon = nil
}

// Pricing holds the bulk-discount knobs. The rate is an integer percent and
// the discount is computed with integer division, which floors.
type Pricing struct {
	BulkThreshold int
	BulkPercent   int
}

func DefaultPricing() Pricing {
	return Pricing{BulkThreshold: 3, BulkPercent: 5}
}

// Summary is derived from the lines on every call and never stored; Total in
// particular has no independent existence.
type Summary struct {
	Items          []Line  `json:"items"`
	ItemCount      int     `json:"itemCount"`
	ServiceCount   int     `json:"serviceCount"`
	Subtotal       int     `json:"subtotal"`
	Discount       int     `json:"discount"`
	Coupon         *Coupon `json:"coupon,omitempty"`
	CouponDiscount int     `json:"couponDiscount"`
	Total          int     `json:"total"`
	IsEmpty        bool    `json:"isEmpty"`
}

func (c Cart) Summarize(p Pricing) Summary {
	s := Summary{Items: c.Lines}

	for _, l := range c.Lines {
		s.ItemCount += l.Quantity
		s.Subtotal += l.LineTotal
	}
	s.ServiceCount = len(c.Lines)

	if s.ServiceCount >= p.BulkThreshold {
		s.Discount = s.Subtotal * p.BulkPercent / 100
	}

	if c.Coupon != nil {
		cp := *c.Coupon
		s.Coupon = &cp
		s.CouponDiscount = cp.DiscountAmount
	}

	s.Total = s.Subtotal - s.Discount - s.CouponDiscount
	if s.Total < 0 {
		s.Total = 0
	}
	s.IsEmpty = len(c.Lines) == 0

	return s
}
