package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/garagely/api/api/background"
	"github.com/garagely/api/api/middleware"
	"github.com/garagely/api/api/web"
	"github.com/garagely/api/cache"
	"github.com/garagely/api/cms"
	"github.com/garagely/api/config"
	"github.com/garagely/api/core/auth"
	"github.com/garagely/api/core/booking"
	"github.com/garagely/api/core/cart"
	"github.com/garagely/api/core/checkout"
	"github.com/garagely/api/core/profile"
	"github.com/garagely/api/rate"
	"github.com/garagely/api/syncq"
	"github.com/gorilla/mux"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type APIConfig struct {
	CorsOrigin    string
	Log           logrus.FieldLogger
	Session       *scs.SessionManager
	Cache         cache.Store
	CMS           *cms.Client
	CMSCfg        config.CMS
	Sync          *syncq.Syncer
	Background    *background.Background
	Flow          *booking.Flow
	Conversations *booking.Registry
	OTPLimiter    *rate.Limiter
	Paypal        *paypal.Client
	Stripe        *stripecl.API
	StripeCfg     config.Stripe
	Pricing       cart.Pricing
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, auth.Populate(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate()

	authCore := &auth.Core{
		Log:           cfg.Log,
		Session:       cfg.Session,
		Cache:         cfg.Cache,
		CMS:           cfg.CMS,
		Limiter:       cfg.OTPLimiter,
		Conversations: cfg.Conversations,
	}

	cartCore := &cart.Core{
		Log:     cfg.Log,
		Session: cfg.Session,
		Cache:   cfg.Cache,
		CMS:     cfg.CMS,
		Sync:    cfg.Sync,
		Pricing: cfg.Pricing,
	}

	chatCore := &booking.Core{
		Log:           cfg.Log,
		Session:       cfg.Session,
		Cache:         cfg.Cache,
		CMS:           cfg.CMS,
		Sync:          cfg.Sync,
		Flow:          cfg.Flow,
		Conversations: cfg.Conversations,
	}

	checkoutCore := &checkout.Core{
		Log:           cfg.Log,
		Session:       cfg.Session,
		CMS:           cfg.CMS,
		ServiceToken:  cfg.CMSCfg.ServiceToken,
		Cart:          cartCore,
		Flow:          cfg.Flow,
		Conversations: cfg.Conversations,
		Sync:          cfg.Sync,
		Background:    cfg.Background,
		Paypal:        cfg.Paypal,
		Stripe:        cfg.Stripe,
		StripeCfg:     cfg.StripeCfg,
	}

	profileCore := &profile.Core{
		Log: cfg.Log,
		CMS: cfg.CMS,
	}

	a.Handle(http.MethodPost, "/auth/otp", authCore.HandleSendOTP())
	a.Handle(http.MethodPost, "/auth/otp/verify", authCore.HandleVerifyOTP())
	a.Handle(http.MethodPost, "/auth/logout", authCore.HandleLogout())

	a.Handle(http.MethodGet, "/users/current", authCore.HandleShowCurrent(), authen)

	a.Handle(http.MethodGet, "/cart", cartCore.HandleShow())
	a.Handle(http.MethodDelete, "/cart", cartCore.HandleClear())
	a.Handle(http.MethodPut, "/cart/items", cartCore.HandleAddItem())
	a.Handle(http.MethodPut, "/cart/items/{service_id}", cartCore.HandleSetQuantity())
	a.Handle(http.MethodDelete, "/cart/items/{service_id}", cartCore.HandleDeleteItem())
	a.Handle(http.MethodPost, "/cart/coupon", cartCore.HandleApplyCoupon(), authen)
	a.Handle(http.MethodDelete, "/cart/coupon", cartCore.HandleRemoveCoupon())

	a.Handle(http.MethodPost, "/chat", chatCore.HandleStart())
	a.Handle(http.MethodGet, "/chat", chatCore.HandleShow())
	a.Handle(http.MethodPost, "/chat/select", chatCore.HandleSelect())
	a.Handle(http.MethodPost, "/chat/input", chatCore.HandleInput())

	a.Handle(http.MethodPost, "/orders/paypal", checkoutCore.HandlePaypalCheckout(), authen)
	a.Handle(http.MethodPost, "/orders/paypal/{id}/capture", checkoutCore.HandlePaypalCapture(), authen)
	a.Handle(http.MethodPost, "/orders/stripe", checkoutCore.HandleStripeCheckout(), authen)
	a.Handle(http.MethodPost, "/orders/stripe/capture", checkoutCore.HandleStripeCapture())
	a.Handle(http.MethodPost, "/orders/complete", checkoutCore.HandleComplete(), authen)
	a.Handle(http.MethodPost, "/orders/cancel", checkoutCore.HandleCancel(), authen)

	a.Handle(http.MethodGet, "/profile/cars", profileCore.HandleListCars(), authen)
	a.Handle(http.MethodPost, "/profile/cars", profileCore.HandleCreateCar(), authen)
	a.Handle(http.MethodDelete, "/profile/cars/{id}", profileCore.HandleDeleteCar(), authen)
	a.Handle(http.MethodGet, "/profile/addresses", profileCore.HandleListAddresses(), authen)
	a.Handle(http.MethodPost, "/profile/addresses", profileCore.HandleCreateAddress(), authen)
	a.Handle(http.MethodDelete, "/profile/addresses/{id}", profileCore.HandleDeleteAddress(), authen)
	a.Handle(http.MethodGet, "/profile/orders", profileCore.HandleListOrders(), authen)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {
	handler = web.WrapMiddleware(mw, handler)
	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {
			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
