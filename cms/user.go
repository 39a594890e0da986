package cms

import (
	"context"
	"fmt"
	"net/http"
)

type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &u); err != nil {
		return User{}, fmt.Errorf("fetching current user: %w", err)
	}
	return u, nil
}

// SendOTP asks the store to deliver a one-time password to the given mobile
// number. Delivery itself is the store's concern.
func (c *Client) SendOTP(ctx context.Context, phone string) error {
	body := struct {
		Phone string `json:"phone"`
	}{Phone: phone}

	if err := c.do(ctx, http.MethodPost, "/auth/otp", body, nil); err != nil {
		return fmt.Errorf("requesting otp for phone[%s]: %w", phone, err)
	}
	return nil
}

type session struct {
	JWT  string `json:"jwt"`
	User User   `json:"user"`
}

// VerifyOTP exchanges a phone + code pair for a bearer token and the
// authenticated user record.
func (c *Client) VerifyOTP(ctx context.Context, phone, code string) (string, User, error) {
	body := struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}{Phone: phone, Code: code}

	var s session
	if err := c.do(ctx, http.MethodPost, "/auth/otp/verify", body, &s); err != nil {
		return "", User{}, fmt.Errorf("verifying otp: %w", err)
	}
	return s.JWT, s.User, nil
}
