package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/garagely/api/api/web"
	"github.com/garagely/api/api/weberr"
	"github.com/garagely/api/cache"
	"github.com/garagely/api/cms"
	"github.com/garagely/api/core/claims"
	"github.com/garagely/api/syncq"
	"github.com/garagely/api/validate"
	"github.com/sirupsen/logrus"
)

const hydratedKey = "cart_hydrated"

// Core bundles what the cart handlers need. The session cache is the
// synchronous store; the remote mirror goes through the Syncer and never
// blocks a response.
type Core struct {
	Log     logrus.FieldLogger
	Session *scs.SessionManager
	Cache   cache.Store
	CMS     *cms.Client
	Sync    *syncq.Syncer
	Pricing Pricing
}

func (co *Core) Load(ctx context.Context) Cart {
	var c Cart

	sid := co.Session.Token(ctx)
	raw, ok, err := co.Cache.Get(ctx, cache.CartKey(sid))
	if err != nil {
		co.Log.WithField("message", err).Warn("reading cached cart")
		return c
	}
	if !ok {
		return c
	}

	if err := json.Unmarshal(raw, &c); err != nil {
		// Unreadable cache entry: start fresh rather than wedging the flow.
		co.Log.WithField("message", err).Warn("discarding malformed cached cart")
		return Cart{}
	}
	return c
}

func (co *Core) Save(ctx context.Context, c Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling cart: %w", err)
	}

	sid := co.Session.Token(ctx)
	if err := co.Cache.Set(ctx, cache.CartKey(sid), raw); err != nil {
		return fmt.Errorf("caching cart: %w", err)
	}
	return nil
}

// hydrate replaces the cached cart with the user's most recent active remote
// cart, once per session after sign-in. Remote wins; any failure falls back
// to the cache verbatim.
func (co *Core) hydrate(ctx context.Context, c *Cart) {
	clm, err := claims.Get(ctx)
	if err != nil || clm.Token == "" {
		return
	}
	if co.Session.GetBool(ctx, hydratedKey) {
		return
	}
	co.Session.Put(ctx, hydratedKey, true)

	remote, err := co.CMS.WithToken(clm.Token).LatestActiveCart(ctx)
	if err != nil {
		if !errors.Is(err, cms.ErrNoCart) {
			co.Log.WithField("message", err).Warn("fetching remote cart")
		}
		return
	}

	var lines []Line
	if err := json.Unmarshal(remote.Items, &lines); err != nil {
		co.Log.WithField("message", err).Warn("decoding remote cart items")
		return
	}

	c.Lines = lines
	c.Coupon = nil
	if err := co.Save(ctx, *c); err != nil {
		co.Log.WithField("message", err).Warn("caching hydrated cart")
	}
}

// scheduleUpsert mirrors the cart to the remote store when the visitor is
// signed in and the cart is non-empty. Create-if-absent, else update.
func (co *Core) scheduleUpsert(ctx context.Context, c Cart) {
	clm, err := claims.Get(ctx)
	if err != nil || clm.Token == "" || len(c.Lines) == 0 {
		return
	}

	raw, err := json.Marshal(c.Lines)
	if err != nil {
		co.Log.WithField("message", err).Warn("marshaling cart lines for sync")
		return
	}

	client := co.CMS.WithToken(clm.Token)
	sid := co.Session.Token(ctx)

	co.Sync.Enqueue("cart:"+sid, func(ctx context.Context) error {
		up := cms.CartUpsert{Items: raw, Active: true}

		remote, err := client.LatestActiveCart(ctx)
		if errors.Is(err, cms.ErrNoCart) {
			_, err := client.CreateCart(ctx, up)
			return err
		}
		if err != nil {
			return err
		}
		return client.UpdateCart(ctx, remote.ID, up)
	})
}

// scheduleDeactivate marks the remote cart inactive after a clear.
func (co *Core) scheduleDeactivate(ctx context.Context) {
	clm, err := claims.Get(ctx)
	if err != nil || clm.Token == "" {
		return
	}

	client := co.CMS.WithToken(clm.Token)
	sid := co.Session.Token(ctx)

	co.Sync.Enqueue("cart:"+sid, func(ctx context.Context) error {
		remote, err := client.LatestActiveCart(ctx)
		if errors.Is(err, cms.ErrNoCart) {
			return nil
		}
		if err != nil {
			return err
		}
		return client.DeactivateCart(ctx, remote.ID)
	})
}

// ClearAfterCheckout empties the cart once an order has been paid and
// schedules the remote deactivation.
func (co *Core) ClearAfterCheckout(ctx context.Context) error {
	c := co.Load(ctx)
	c.Clear()

	if err := co.Save(ctx, c); err != nil {
		return err
	}
	co.scheduleDeactivate(ctx)
	return nil
}

func (co *Core) HandleShow() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		c := co.Load(ctx)
		co.hydrate(ctx, &c)
		return web.Respond(ctx, w, c.Summarize(co.Pricing), http.StatusOK)
	}
}

type ItemNew struct {
	ServiceID   string `json:"serviceId" validate:"required"`
	Kind        string `json:"kind" validate:"required,oneof=regular doorstep"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	UnitPrice   int    `json:"unitPrice" validate:"required,gt=0"`
	PickupSlot  string `json:"pickupSlot"`
	Area        string `json:"area"`
}

func (co *Core) HandleAddItem() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in ItemNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding item: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		kind, err := ParseKind(in.Kind)
		if err != nil {
			return weberr.BadRequest(err)
		}

		snap := Snapshot{Name: in.Name, Description: in.Description}
		if kind == KindDoorstep {
			snap.Doorstep = &DoorstepInfo{PickupSlot: in.PickupSlot, Area: in.Area}
		}

		c := co.Load(ctx)
		c.Add(in.ServiceID, kind, snap, in.UnitPrice)

		if err := co.Save(ctx, c); err != nil {
			return err
		}
		co.scheduleUpsert(ctx, c)

		return web.Respond(ctx, w, c.Summarize(co.Pricing), http.StatusOK)
	}
}

type QuantityUp struct {
	Kind     string `json:"kind" validate:"required,oneof=regular doorstep"`
	Quantity int    `json:"quantity"`
}

func (co *Core) HandleSetQuantity() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		serviceID := web.Param(r, "service_id")

		var in QuantityUp
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding quantity: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		kind, err := ParseKind(in.Kind)
		if err != nil {
			return weberr.BadRequest(err)
		}

		c := co.Load(ctx)
		c.SetQuantity(serviceID, kind, in.Quantity)

		if err := co.Save(ctx, c); err != nil {
			return err
		}
		co.scheduleUpsert(ctx, c)

		return web.Respond(ctx, w, c.Summarize(co.Pricing), http.StatusOK)
	}
}

func (co *Core) HandleDeleteItem() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		serviceID := web.Param(r, "service_id")

		kind, err := ParseKind(web.QueryParam(r, "kind"))
		if err != nil {
			return weberr.BadRequest(err)
		}

		c := co.Load(ctx)
		c.Remove(serviceID, kind)

		if err := co.Save(ctx, c); err != nil {
			return err
		}
		co.scheduleUpsert(ctx, c)

		return web.Respond(ctx, w, c.Summarize(co.Pricing), http.StatusOK)
	}
}

func (co *Core) HandleClear() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		c := co.Load(ctx)
		c.Clear()

		if err := co.Save(ctx, c); err != nil {
			return err
		}
		co.scheduleDeactivate(ctx)

		return web.Respond(ctx, w, c.Summarize(co.Pricing), http.StatusOK)
	}
}

type CouponApply struct {
	Code string `json:"code" validate:"required"`
}

func (co *Core) HandleApplyCoupon() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in CouponApply
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding coupon: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		clm, err := claims.Get(ctx)
		if err != nil || clm.Token == "" {
			return weberr.NotAuthorized(errors.New("sign in to apply a coupon"))
		}

		c := co.Load(ctx)
		sum := c.Summarize(co.Pricing)
		if sum.IsEmpty {
			return weberr.Unprocessable(errors.New("coupon on empty cart"), "add services before applying a coupon")
		}

		remote, err := co.CMS.WithToken(clm.Token).ValidateCoupon(ctx, in.Code, sum.Subtotal)
		if err != nil {
			var ce *cms.Error
			if errors.As(err, &ce) {
				return weberr.Unprocessable(err, ce.Message)
			}
			return fmt.Errorf("validating coupon: %w", err)
		}

		c.ApplyCoupon(Coupon{Code: remote.Code, DiscountAmount: remote.DiscountAmount})

		if err := co.Save(ctx, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, c.Summarize(co.Pricing), http.StatusOK)
	}
}

func (co *Core) HandleRemoveCoupon() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		c := co.Load(ctx)
		c.RemoveCoupon()

		if err := co.Save(ctx, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, c.Summarize(co.Pricing), http.StatusOK)
	}
}
