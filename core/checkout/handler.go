// Package checkout assembles the payment handoff: it turns the finalized
// cart summary and booking draft into a provider payment intent, records a
// pending order on the remote store, and reacts to the provider's success,
// failure and cancellation outcomes.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/garagely/api/api/background"
	"github.com/garagely/api/api/web"
	"github.com/garagely/api/api/weberr"
	"github.com/garagely/api/cms"
	"github.com/garagely/api/config"
	"github.com/garagely/api/core/booking"
	"github.com/garagely/api/core/cart"
	"github.com/garagely/api/core/claims"
	"github.com/garagely/api/syncq"
	"github.com/garagely/api/validate"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/plutov/paypal/v4"
)

type Core struct {
	Log           logrus.FieldLogger
	Session       *scs.SessionManager
	CMS           *cms.Client
	ServiceToken  string
	Cart          *cart.Core
	Flow          *booking.Flow
	Conversations *booking.Registry
	Sync          *syncq.Syncer
	Background    *background.Background
	Paypal        *paypal.Client
	Stripe        *stripecl.API
	StripeCfg     config.Stripe
}

// emptyCartError is the missing-prerequisite outcome: the client is told to
// go back to the cart instead of getting a server error.
func emptyCartError() error {
	err := errors.New("no items to checkout")
	body := struct {
		Error    string `json:"error"`
		Redirect string `json:"redirect"`
	}{Error: "your cart is empty", Redirect: "/cart"}

	return weberr.Wrap(err, weberr.WithResponse(&body, http.StatusUnprocessableEntity))
}

// summary loads the session cart and verifies there is something to pay for.
func (co *Core) summary(ctx context.Context) (cart.Summary, error) {
	sum := co.Cart.Load(ctx).Summarize(co.Cart.Pricing)
	if sum.IsEmpty {
		return cart.Summary{}, emptyCartError()
	}
	return sum, nil
}

// prepare records the pending order bound to the provider payment.
func (co *Core) prepare(ctx context.Context, token, providerID string, sum cart.Summary) error {
	items := make([]cms.OrderItem, 0, len(sum.Items))
	for _, l := range sum.Items {
		items = append(items, cms.OrderItem{
			ServiceID: l.ServiceID,
			Kind:      string(l.Kind),
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	ord := cms.NewOrder{
		ProviderID: providerID,
		Status:     cms.OrderPending,
		Amount:     sum.Total,
		Items:      items,
	}

	if _, err := co.CMS.WithToken(token).CreateOrder(ctx, ord); err != nil {
		return fmt.Errorf("creating the order bound to payment[%s]: %w", providerID, err)
	}
	return nil
}

// fulfill marks the order paid. It runs with the service credential because
// webhook callbacks carry no user session.
func (co *Core) fulfill(ctx context.Context, providerID string) error {
	client := co.CMS.WithToken(co.ServiceToken)

	ord, err := client.OrderByProvider(ctx, providerID)
	if err != nil {
		return fmt.Errorf("fetching the order bound to payment[%s]: %w", providerID, err)
	}

	if err := client.UpdateOrderStatus(ctx, ord.ID, cms.OrderSuccess); err != nil {
		return fmt.Errorf("fulfilling the order[%d] bound to payment[%s]: %w", ord.ID, providerID, err)
	}
	return nil
}

// settleSession wires a successful payment back into the session: receipt
// fields onto the booking draft, lead completion, and a cleared cart.
func (co *Core) settleSession(ctx context.Context, paymentID string) {
	sid := co.Session.Token(ctx)

	if conv, ok := co.Conversations.Get(sid); ok {
		conv.SetReceipt(paymentID)
		co.Sync.Enqueue("lead:"+sid, co.Flow.LeadJob(conv, co.CMS))
	}

	if err := co.Cart.ClearAfterCheckout(ctx); err != nil {
		co.Log.WithField("message", err).Warn("clearing cart after checkout")
	}
}

// metadata carried on the payment intent so the provider dashboard can be
// reconciled against the store.
func (co *Core) intentMetadata(ctx context.Context, sum cart.Summary) map[string]string {
	ids := make([]string, 0, len(sum.Items))
	for _, l := range sum.Items {
		ids = append(ids, l.ServiceID)
	}

	md := map[string]string{"services": strings.Join(ids, ",")}

	sid := co.Session.Token(ctx)
	if conv, ok := co.Conversations.Get(sid); ok {
		d := conv.Draft()
		if d.Name != "" {
			md["name"] = d.Name
		}
		if d.Phone != "" {
			md["phone"] = d.Phone
		}
		if d.BookingRef != "" {
			md["bookingRef"] = d.BookingRef
		}
	}

	return md
}

func (co *Core) HandleStripeCheckout() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil || clm.Token == "" {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		sum, err := co.summary(ctx)
		if err != nil {
			return err
		}

		md := co.intentMetadata(ctx, sum)

		// One intent for the reconciled total: the bulk and coupon
		// discounts are already folded in, in paise.
		params := &stripe.CheckoutSessionParams{
			SuccessURL: stripe.String(co.StripeCfg.SuccessURL),
			CancelURL:  stripe.String(co.StripeCfg.CancelURL),
			Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),

			LineItems: []*stripe.CheckoutSessionLineItemParams{{
				Quantity: stripe.Int64(1),

				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("inr"),
					UnitAmount: stripe.Int64(int64(sum.Total) * 100),

					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(fmt.Sprintf("Car service order (%d services)", sum.ServiceCount)),
						Description: stripe.String("Garagely booking"),
					},
				},
			}},
		}
		for k, v := range md {
			params.AddMetadata(k, v)
		}

		// A fresh key per attempt: retries after a visible failure create a
		// new session rather than resurrecting the failed one.
		params.SetIdempotencyKey(validate.GenerateID())

		s, err := co.Stripe.CheckoutSessions.New(params)
		if err != nil {
			return fmt.Errorf("creating stripe session: %w", err)
		}

		if err := co.prepare(ctx, clm.Token, s.ID, sum); err != nil {
			return fmt.Errorf("creating the order on the store: %w", err)
		}

		return web.Respond(ctx, w, s.URL, http.StatusOK)
	}
}

func (co *Core) HandleStripeCapture() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := ioutil.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		event, err := webhook.ConstructEvent(b, sig, co.StripeCfg.WebhookSecret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot construct stripe event: %w", err))
		}

		if event.Type != "checkout.session.completed" {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		var session stripe.CheckoutSession
		if err = json.Unmarshal(event.Data.Raw, &session); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
		}

		if session.Mode != stripe.CheckoutSessionModePayment {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		if err := co.fulfill(ctx, session.ID); err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func (co *Core) HandlePaypalCheckout() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil || clm.Token == "" {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		sum, err := co.summary(ctx)
		if err != nil {
			return err
		}

		items := make([]paypal.Item, 0, len(sum.Items))
		for _, l := range sum.Items {
			items = append(items, paypal.Item{
				Quantity:    strconv.Itoa(l.Quantity),
				Name:        l.Snapshot.Name,
				Description: l.Snapshot.Description,

				UnitAmount: &paypal.Money{
					Currency: "INR",
					Value:    strconv.Itoa(l.UnitPrice),
				},
			})
		}

		units := []paypal.PurchaseUnitRequest{{
			Items: items,

			Amount: &paypal.PurchaseUnitAmount{
				Currency: "INR",
				Value:    strconv.Itoa(sum.Total),

				Breakdown: &paypal.PurchaseUnitAmountBreakdown{
					ItemTotal: &paypal.Money{
						Currency: "INR",
						Value:    strconv.Itoa(sum.Subtotal),
					},
					Discount: &paypal.Money{
						Currency: "INR",
						Value:    strconv.Itoa(sum.Discount + sum.CouponDiscount),
					},
				},
			},
		}}

		ord, err := co.Paypal.CreateOrder(ctx, "CAPTURE", units, nil, &paypal.ApplicationContext{})
		if err != nil {
			return fmt.Errorf("creating paypal order: %w", err)
		}

		if err := co.prepare(ctx, clm.Token, ord.ID, sum); err != nil {
			return fmt.Errorf("creating the order on the store: %w", err)
		}

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

func (co *Core) HandlePaypalCapture() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		providerID := web.Param(r, "id")

		resp, err := co.Paypal.CaptureOrder(ctx, providerID, paypal.CaptureOrderRequest{})
		if err != nil {
			// Surface the provider's own message with a retry affordance.
			return weberr.Unprocessable(fmt.Errorf("capturing paypal order[%s]: %w", providerID, err), err.Error())
		}

		if resp.Status != "COMPLETED" {
			return fmt.Errorf("captured order[%s] with status[%s] different from 'COMPLETED'", providerID, resp.Status)
		}

		if err := co.fulfill(ctx, providerID); err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		co.settleSession(ctx, providerID)

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

type CancelReq struct {
	ProviderID string `json:"providerId"`
	Reason     string `json:"reason"`
}

// HandleCancel treats a user cancellation like a failure with a generic
// message; the pending order is marked failed best-effort.
func (co *Core) HandleCancel() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in CancelReq
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding cancellation: %w", err))
		}

		// The status update runs off-request: the response must not wait
		// on the store and the request context is about to die.
		if providerID := in.ProviderID; providerID != "" {
			co.Background.Go(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				client := co.CMS.WithToken(co.ServiceToken)
				ord, err := client.OrderByProvider(ctx, providerID)
				if err != nil {
					co.Log.WithField("message", err).Warn("resolving cancelled order")
					return
				}
				if err := client.UpdateOrderStatus(ctx, ord.ID, cms.OrderFailed); err != nil {
					co.Log.WithField("message", err).Warn("marking cancelled order failed")
				}
			})
		}

		body := struct {
			Message string `json:"message"`
			Retry   bool   `json:"retry"`
		}{Message: "payment was not completed, you can try again", Retry: true}

		return web.Respond(ctx, w, body, http.StatusOK)
	}
}

type CompleteReq struct {
	ProviderID string `json:"providerId"`
}

// HandleComplete is called by the SPA after landing on the success URL: it
// settles the session side of a stripe payment (the webhook already settled
// the order itself).
func (co *Core) HandleComplete() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in CompleteReq
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding completion: %w", err))
		}
		if in.ProviderID == "" {
			return weberr.BadRequest(errors.New("providerId is required"))
		}

		co.settleSession(ctx, in.ProviderID)

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
