// Package catalog holds the vehicle and scheduling reference data the
// booking flow filters its dynamic options from. The dataset is embedded and
// loaded once; it never changes at runtime.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed data.json
var dataFS embed.FS

type Variant struct {
	FuelType string `json:"fuelType"`
	Price    int    `json:"price"`
}

type Model struct {
	Name     string    `json:"name"`
	Variants []Variant `json:"variants"`
}

type Manufacturer struct {
	Name   string  `json:"name"`
	Models []Model `json:"models"`
}

type Catalog struct {
	Manufacturers []Manufacturer `json:"manufacturers"`
	Areas         []string       `json:"areas"`
	TimeSlots     []string       `json:"timeSlots"`
}

// Load parses the embedded dataset. Call once at startup.
func Load() (*Catalog, error) {
	raw, err := dataFS.ReadFile("data.json")
	if err != nil {
		return nil, fmt.Errorf("reading embedded catalog: %w", err)
	}

	var c Catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return &c, nil
}

func (c *Catalog) ManufacturerNames() []string {
	names := make([]string, 0, len(c.Manufacturers))
	for _, m := range c.Manufacturers {
		names = append(names, m.Name)
	}
	return names
}

// ModelNames lists the models of one manufacturer; unknown manufacturers
// yield an empty set.
func (c *Catalog) ModelNames(manufacturer string) []string {
	for _, m := range c.Manufacturers {
		if m.Name != manufacturer {
			continue
		}
		names := make([]string, 0, len(m.Models))
		for _, mo := range m.Models {
			names = append(names, mo.Name)
		}
		return names
	}
	return nil
}

// Variants lists the fuel-type variants (with prices) of one model.
func (c *Catalog) Variants(manufacturer, model string) []Variant {
	for _, m := range c.Manufacturers {
		if m.Name != manufacturer {
			continue
		}
		for _, mo := range m.Models {
			if mo.Name == model {
				return mo.Variants
			}
		}
	}
	return nil
}

// Price resolves the base service price for a full vehicle identity.
func (c *Catalog) Price(manufacturer, model, fuelType string) (int, bool) {
	for _, v := range c.Variants(manufacturer, model) {
		if v.FuelType == fuelType {
			return v.Price, true
		}
	}
	return 0, false
}
