package cms

import (
	"context"
	"fmt"
	"net/http"
)

type Coupon struct {
	Code           string `json:"code"`
	DiscountAmount int    `json:"discountAmount"`
}

// ValidateCoupon checks a code against the store. The subtotal is sent so the
// store can enforce minimum-order rules; an invalid or expired code comes
// back as a store error.
func (c *Client) ValidateCoupon(ctx context.Context, code string, subtotal int) (Coupon, error) {
	body := struct {
		Code     string `json:"code"`
		Subtotal int    `json:"subtotal"`
	}{Code: code, Subtotal: subtotal}

	var cp Coupon
	if err := c.do(ctx, http.MethodPost, "/coupons/validate", body, &cp); err != nil {
		return Coupon{}, fmt.Errorf("validating coupon[%s]: %w", code, err)
	}
	return cp, nil
}
