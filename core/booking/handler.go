package booking

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
	"github.com/garagely/api/syncq"
	"github.com/garagely/api/validate"
	"github.com/sirupsen/logrus"
)

type Core struct {
	Log           logrus.FieldLogger
	Session       *scs.SessionManager
	Cache         cache.Store
	CMS           *cms.Client
	Sync          *syncq.Syncer
	Flow          *Flow
	Conversations *Registry
}

// scratch mirrors the draft into the local cache, best-effort.
func (co *Core) scratch(ctx context.Context, sid string, conv *Conversation) {
	raw, err := json.Marshal(conv.Draft())
	if err != nil {
		co.Log.WithField("message", err).Warn("marshaling draft scratch")
		return
	}
	if err := co.Cache.Set(ctx, cache.ChatKey(sid), raw); err != nil {
		co.Log.WithField("message", err).Warn("caching draft scratch")
	}
}

// persist schedules the lead mirror. Draft persistence only begins once a
// phone number has been captured.
func (co *Core) persist(sid string, conv *Conversation) {
	co.Sync.Enqueue("lead:"+sid, co.Flow.LeadJob(conv, co.CMS))
}

// HandleStart opens a fresh conversation, discarding any prior draft.
func (co *Core) HandleStart() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		sid := co.Session.Token(ctx)

		conv := co.Flow.NewConversation()
		co.Conversations.Put(sid, conv)
		co.scratch(ctx, sid, conv)

		return web.Respond(ctx, w, co.Flow.View(conv), http.StatusOK)
	}
}

// HandleShow returns the current step without advancing anything.
func (co *Core) HandleShow() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		sid := co.Session.Token(ctx)
		conv := co.Conversations.GetOrCreate(sid, co.Flow)

		return web.Respond(ctx, w, co.Flow.View(conv), http.StatusOK)
	}
}

type SelectReq struct {
	OptionID string `json:"optionId" validate:"required"`
}

func (co *Core) HandleSelect() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in SelectReq
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding selection: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		sid := co.Session.Token(ctx)
		conv := co.Conversations.GetOrCreate(sid, co.Flow)

		view, persist, err := co.Flow.Select(conv, in.OptionID)
		if err != nil {
			if errors.Is(err, ErrSelectionInFlight) {
				return weberr.NewError(err, "hold on, that choice is already being processed", http.StatusConflict)
			}
			return weberr.BadRequest(err)
		}

		co.scratch(ctx, sid, conv)
		if persist {
			co.persist(sid, conv)
		}

		return web.Respond(ctx, w, view, http.StatusOK)
	}
}

type InputReq struct {
	Text string `json:"text" validate:"required"`
}

func (co *Core) HandleInput() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in InputReq
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding input: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		sid := co.Session.Token(ctx)
		conv := co.Conversations.GetOrCreate(sid, co.Flow)

		view, persist, err := co.Flow.Input(conv, in.Text)
		if err != nil {
			return weberr.BadRequest(err)
		}

		co.scratch(ctx, sid, conv)
		if persist {
			co.persist(sid, conv)
		}

		return web.Respond(ctx, w, view, http.StatusOK)
	}
}
