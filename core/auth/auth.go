// Package auth handles the OTP sign-in flow and the session middleware. The
// server never sees a password: the content store delivers a one-time code to
// the visitor's phone and exchanges it for a bearer token, which is then kept
// in the server-side session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/garagely/api/api/web"
	"github.com/garagely/api/api/weberr"
	"github.com/garagely/api/cache"
	"github.com/garagely/api/cms"
	"github.com/garagely/api/core/booking"
	"github.com/garagely/api/core/claims"
	"github.com/garagely/api/rate"
	"github.com/garagely/api/validate"
	"github.com/sirupsen/logrus"
)

const (
	tokenKey = "auth_token"
	userKey  = "auth_user_id"
	phoneKey = "auth_phone"
)

// LoadAndSave adapts the scs middleware to the web.Handler chain. It must be
// the outermost middleware so every handler sees the loaded session.
func LoadAndSave(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var err error

			sh := session.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				err = handler(r.Context(), w, r)
			}))
			sh.ServeHTTP(w, r)

			return err
		}
		return h
	}
	return m
}

// Populate copies the session identity into the request claims on every
// request, signed-in or not. Handlers that require sign-in check the claims.
func Populate(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			c := claims.Claims{
				Token:  session.GetString(ctx, tokenKey),
				UserID: session.GetInt(ctx, userKey),
				Phone:  session.GetString(ctx, phoneKey),
			}

			ctx = claims.Set(ctx, c)
			return handler(ctx, w, r.WithContext(ctx))
		}
		return h
	}
	return m
}

// Authenticate rejects requests that carry no signed-in identity.
func Authenticate() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if !claims.Authenticated(ctx) {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

type Core struct {
	Log           logrus.FieldLogger
	Session       *scs.SessionManager
	Cache         cache.Store
	CMS           *cms.Client
	Limiter       *rate.Limiter
	Conversations *booking.Registry
}

// rekey moves the session-scoped cache entries to the renewed session token,
// so the anonymous cart and chat scratch survive sign-in and sign-out.
func (co *Core) rekey(ctx context.Context, old, now string) {
	for _, key := range []func(string) string{cache.CartKey, cache.ChatKey} {
		raw, ok, err := co.Cache.Get(ctx, key(old))
		if err != nil || !ok {
			continue
		}
		if err := co.Cache.Set(ctx, key(now), raw); err != nil {
			co.Log.WithField("message", err).Warn("moving cache entry to renewed session")
			continue
		}
		if err := co.Cache.Delete(ctx, key(old)); err != nil {
			co.Log.WithField("message", err).Warn("dropping stale cache entry")
		}
	}

	if conv, ok := co.Conversations.Get(old); ok {
		co.Conversations.Put(now, conv)
	}
}

type OTPRequest struct {
	Phone string `json:"phone" validate:"required,inphone"`
}

// HandleSendOTP asks the store to deliver a code. The endpoint is rate
// limited per phone number so a bot cannot drain the SMS budget.
func (co *Core) HandleSendOTP() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in OTPRequest
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding otp request: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if !co.Limiter.Check(in.Phone) {
			return weberr.TooManyRequests(errors.New("otp rate limit exceeded for " + in.Phone))
		}

		if err := co.CMS.SendOTP(ctx, in.Phone); err != nil {
			var ce *cms.Error
			if errors.As(err, &ce) {
				return weberr.Unprocessable(err, ce.Message)
			}
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

type OTPVerify struct {
	Phone string `json:"phone" validate:"required,inphone"`
	Code  string `json:"code" validate:"required,numeric,len=6"`
}

// HandleVerifyOTP exchanges the code for a bearer token and binds it to the
// session. The session token is rotated on privilege change.
func (co *Core) HandleVerifyOTP() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in OTPVerify
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding otp verification: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		jwt, user, err := co.CMS.VerifyOTP(ctx, in.Phone, in.Code)
		if err != nil {
			var ce *cms.Error
			if errors.As(err, &ce) {
				return weberr.Unprocessable(err, ce.Message)
			}
			return fmt.Errorf("verifying otp: %w", err)
		}

		old := co.Session.Token(ctx)
		if err := co.Session.RenewToken(ctx); err != nil {
			return fmt.Errorf("renewing session token: %w", err)
		}
		co.rekey(ctx, old, co.Session.Token(ctx))

		co.Session.Put(ctx, tokenKey, jwt)
		co.Session.Put(ctx, userKey, user.ID)
		co.Session.Put(ctx, phoneKey, user.Phone)

		return web.Respond(ctx, w, user, http.StatusOK)
	}
}

func (co *Core) HandleLogout() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		co.Session.Remove(ctx, tokenKey)
		co.Session.Remove(ctx, userKey)
		co.Session.Remove(ctx, phoneKey)

		old := co.Session.Token(ctx)
		if err := co.Session.RenewToken(ctx); err != nil {
			return fmt.Errorf("renewing session token: %w", err)
		}
		co.rekey(ctx, old, co.Session.Token(ctx))

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleShowCurrent returns the signed-in user as the store sees it.
func (co *Core) HandleShowCurrent() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		user, err := co.CMS.WithToken(clm.Token).CurrentUser(ctx)
		if err != nil {
			return fmt.Errorf("fetching user[%d]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, user, http.StatusOK)
	}
}
