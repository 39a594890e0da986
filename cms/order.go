package cms

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderSuccess OrderStatus = "success"
	OrderFailed  OrderStatus = "failed"
)

type OrderItem struct {
	ServiceID string `json:"serviceId"`
	Kind      string `json:"kind"`
	Quantity  int    `json:"quantity"`
	UnitPrice int    `json:"unitPrice"`
}

type Order struct {
	ID         int         `json:"id"`
	ProviderID string      `json:"providerId"`
	Status     OrderStatus `json:"status"`
	Amount     int         `json:"amount"`
	Items      []OrderItem `json:"items"`
	CreatedAt  time.Time   `json:"createdAt"`
}

type NewOrder struct {
	ProviderID string      `json:"providerId"`
	Status     OrderStatus `json:"status"`
	Amount     int         `json:"amount"`
	Items      []OrderItem `json:"items"`
}

func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.do(ctx, http.MethodGet, "/orders?sort=createdAt:desc", nil, &orders); err != nil {
		return nil, fmt.Errorf("fetching orders: %w", err)
	}
	return orders, nil
}

func (c *Client) CreateOrder(ctx context.Context, ord NewOrder) (Order, error) {
	var created Order
	if err := c.do(ctx, http.MethodPost, "/orders", ord, &created); err != nil {
		return Order{}, fmt.Errorf("creating order: %w", err)
	}
	return created, nil
}

// OrderByProvider resolves the order bound to a payment-provider identifier.
func (c *Client) OrderByProvider(ctx context.Context, providerID string) (Order, error) {
	path := "/orders?filters[providerId][$eq]=" + providerID
	var orders []Order
	if err := c.do(ctx, http.MethodGet, path, nil, &orders); err != nil {
		return Order{}, fmt.Errorf("fetching order for payment[%s]: %w", providerID, err)
	}
	if len(orders) == 0 {
		return Order{}, &Error{Status: http.StatusNotFound, Name: "NotFoundError", Message: "order not found"}
	}
	return orders[0], nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id int, status OrderStatus) error {
	path := fmt.Sprintf("/orders/%d", id)
	body := struct {
		Status OrderStatus `json:"status"`
	}{Status: status}

	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("updating order[%d] status: %w", id, err)
	}
	return nil
}
