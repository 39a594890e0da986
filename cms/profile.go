package cms

import (
	"context"
	"fmt"
	"net/http"
)

type Car struct {
	ID           int    `json:"id"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	FuelType     string `json:"fuelType"`
	Registration string `json:"registration"`
}

type NewCar struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	FuelType     string `json:"fuelType"`
	Registration string `json:"registration"`
}

func (c *Client) Cars(ctx context.Context) ([]Car, error) {
	var cars []Car
	if err := c.do(ctx, http.MethodGet, "/cars", nil, &cars); err != nil {
		return nil, fmt.Errorf("fetching cars: %w", err)
	}
	return cars, nil
}

func (c *Client) CreateCar(ctx context.Context, car NewCar) (Car, error) {
	var created Car
	if err := c.do(ctx, http.MethodPost, "/cars", car, &created); err != nil {
		return Car{}, fmt.Errorf("creating car: %w", err)
	}
	return created, nil
}

func (c *Client) DeleteCar(ctx context.Context, id int) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/cars/%d", id), nil, nil); err != nil {
		return fmt.Errorf("deleting car[%d]: %w", id, err)
	}
	return nil
}

type Address struct {
	ID      int    `json:"id"`
	Label   string `json:"label"`
	Line1   string `json:"line1"`
	Area    string `json:"area"`
	City    string `json:"city"`
	Pincode string `json:"pincode"`
}

type NewAddress struct {
	Label   string `json:"label"`
	Line1   string `json:"line1"`
	Area    string `json:"area"`
	City    string `json:"city"`
	Pincode string `json:"pincode"`
}

func (c *Client) Addresses(ctx context.Context) ([]Address, error) {
	var addrs []Address
	if err := c.do(ctx, http.MethodGet, "/addresses", nil, &addrs); err != nil {
		return nil, fmt.Errorf("fetching addresses: %w", err)
	}
	return addrs, nil
}

func (c *Client) CreateAddress(ctx context.Context, addr NewAddress) (Address, error) {
	var created Address
	if err := c.do(ctx, http.MethodPost, "/addresses", addr, &created); err != nil {
		return Address{}, fmt.Errorf("creating address: %w", err)
	}
	return created, nil
}

func (c *Client) DeleteAddress(ctx context.Context, id int) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/addresses/%d", id), nil, nil); err != nil {
		return fmt.Errorf("deleting address[%d]: %w", id, err)
	}
	return nil
}
