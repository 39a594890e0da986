package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNoCart is returned when the user has no active remote cart.
var ErrNoCart = errors.New("no active remote cart")

type RemoteCart struct {
	ID        int             `json:"id"`
	Items     json.RawMessage `json:"items"`
	Active    bool            `json:"active"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type CartUpsert struct {
	Items  json.RawMessage `json:"items"`
	Active bool            `json:"active"`
}

// LatestActiveCart fetches the most recently modified active cart of the
// authenticated user.
func (c *Client) LatestActiveCart(ctx context.Context) (RemoteCart, error) {
	const path = "/carts?filters[active][$eq]=true&sort=updatedAt:desc&pagination[limit]=1"

	var carts []RemoteCart
	if err := c.do(ctx, http.MethodGet, path, nil, &carts); err != nil {
		return RemoteCart{}, fmt.Errorf("fetching active carts: %w", err)
	}

	if len(carts) == 0 {
		return RemoteCart{}, ErrNoCart
	}
	return carts[0], nil
}

func (c *Client) CreateCart(ctx context.Context, up CartUpsert) (RemoteCart, error) {
	var cart RemoteCart
	if err := c.do(ctx, http.MethodPost, "/carts", up, &cart); err != nil {
		return RemoteCart{}, fmt.Errorf("creating remote cart: %w", err)
	}
	return cart, nil
}

func (c *Client) UpdateCart(ctx context.Context, id int, up CartUpsert) error {
	path := fmt.Sprintf("/carts/%d", id)
	if err := c.do(ctx, http.MethodPut, path, up, nil); err != nil {
		return fmt.Errorf("updating remote cart[%d]: %w", id, err)
	}
	return nil
}

// DeactivateCart marks the cart inactive, the remote equivalent of clearing.
func (c *Client) DeactivateCart(ctx context.Context, id int) error {
	path := fmt.Sprintf("/carts/%d", id)
	body := struct {
		Active bool `json:"active"`
	}{Active: false}

	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("deactivating remote cart[%d]: %w", id, err)
	}
	return nil
}
