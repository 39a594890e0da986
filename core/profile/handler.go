// Package profile exposes the signed-in user's saved cars, addresses and
// order history. The handlers are thin: validation happens here, the data
// itself lives on the content store and is fetched with the user's token.
package profile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/garagely/api/api/web"
	"github.com/garagely/api/api/weberr"
	"github.com/garagely/api/cms"
	"github.com/garagely/api/core/claims"
	"github.com/garagely/api/validate"
	"github.com/sirupsen/logrus"
)

type Core struct {
	Log logrus.FieldLogger
	CMS *cms.Client
}

// client returns a store client bound to the requester's token.
func (co *Core) client(ctx context.Context) (*cms.Client, error) {
	clm, err := claims.Get(ctx)
	if err != nil || clm.Token == "" {
		return nil, weberr.NotAuthorized(errors.New("user not authenticated"))
	}
	return co.CMS.WithToken(clm.Token), nil
}

func (co *Core) HandleListCars() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		client, err := co.client(ctx)
		if err != nil {
			return err
		}

		cars, err := client.Cars(ctx)
		if err != nil {
			return fmt.Errorf("listing cars: %w", err)
		}
		return web.Respond(ctx, w, cars, http.StatusOK)
	}
}

type CarNew struct {
	Manufacturer string `json:"manufacturer" validate:"required"`
	Model        string `json:"model" validate:"required"`
	FuelType     string `json:"fuelType" validate:"required"`
	Registration string `json:"registration"`
}

func (co *Core) HandleCreateCar() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		client, err := co.client(ctx)
		if err != nil {
			return err
		}

		var in CarNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding car: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		car, err := client.CreateCar(ctx, cms.NewCar{
			Manufacturer: in.Manufacturer,
			Model:        in.Model,
			FuelType:     in.FuelType,
			Registration: in.Registration,
		})
		if err != nil {
			return fmt.Errorf("creating car: %w", err)
		}
		return web.Respond(ctx, w, car, http.StatusCreated)
	}
}

func (co *Core) HandleDeleteCar() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		client, err := co.client(ctx)
		if err != nil {
			return err
		}

		id, err := strconv.Atoi(web.Param(r, "id"))
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("invalid car id: %w", err))
		}

		if err := client.DeleteCar(ctx, id); err != nil {
			return fmt.Errorf("deleting car[%d]: %w", id, err)
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func (co *Core) HandleListAddresses() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		client, err := co.client(ctx)
		if err != nil {
			return err
		}

		addrs, err := client.Addresses(ctx)
		if err != nil {
			return fmt.Errorf("listing addresses: %w", err)
		}
		return web.Respond(ctx, w, addrs, http.StatusOK)
	}
}

type AddressNew struct {
	Label   string `json:"label"`
	Line1   string `json:"line1" validate:"required"`
	Area    string `json:"area" validate:"required"`
	City    string `json:"city" validate:"required"`
	Pincode string `json:"pincode" validate:"required,numeric,len=6"`
}

func (co *Core) HandleCreateAddress() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		client, err := co.client(ctx)
		if err != nil {
			return err
		}

		var in AddressNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding address: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		addr, err := client.CreateAddress(ctx, cms.NewAddress{
			Label:   in.Label,
			Line1:   in.Line1,
			Area:    in.Area,
			City:    in.City,
			Pincode: in.Pincode,
		})
		if err != nil {
			return fmt.Errorf("creating address: %w", err)
		}
		return web.Respond(ctx, w, addr, http.StatusCreated)
	}
}

func (co *Core) HandleDeleteAddress() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		client, err := co.client(ctx)
		if err != nil {
			return err
		}

		id, err := strconv.Atoi(web.Param(r, "id"))
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("invalid address id: %w", err))
		}

		if err := client.DeleteAddress(ctx, id); err != nil {
			return fmt.Errorf("deleting address[%d]: %w", id, err)
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleListOrders returns the user's order history, newest first.
func (co *Core) HandleListOrders() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		client, err := co.client(ctx)
		if err != nil {
			return err
		}

		orders, err := client.Orders(ctx)
		if err != nil {
			return fmt.Errorf("listing orders: %w", err)
		}
		return web.Respond(ctx, w, orders, http.StatusOK)
	}
}
