package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/ardanlabs/conf/v3"
	"github.com/garagely/api/api"
	"github.com/garagely/api/api/background"
	"github.com/garagely/api/cache"
	"github.com/garagely/api/cms"
	"github.com/garagely/api/config"
	"github.com/garagely/api/core/booking"
	"github.com/garagely/api/core/booking/catalog"
	"github.com/garagely/api/core/cart"
	"github.com/garagely/api/database"
	"github.com/garagely/api/rate"
	"github.com/garagely/api/syncq"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	const prefix = "GARAGELY"
	var cfg config.Config
	if _, err := conf.Parse(prefix, &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	// The session cache runs in memory unless a database host is
	// configured, in which case it is durable across restarts.
	var store cache.Store = cache.NewMemory()
	if cfg.DB.Host != "" {
		db, err := database.Open(cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to open db connection: %w", err)
		}
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("failed to migrate db: %w", err)
		}
		store = cache.NewPostgres(db)
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = 24 * time.Hour

	client := cms.New(cfg.CMS.URL, cfg.CMS.Timeout)

	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("loading the vehicle catalog: %w", err)
	}

	flow := booking.NewFlow(cat, cfg.Chat.SupportPhone, cfg.Chat.StepDelay, cfg.Chat.RedirectDelay)
	conversations := booking.NewRegistry(cfg.Chat.SessionLifetime)

	syncer := syncq.NewSyncer(logger)
	syncer.Start()
	defer syncer.Stop()

	bg := background.New(logger)

	otpLimiter := rate.NewLimiter(cfg.Auth.OTPBurst, cfg.Auth.OTPExpiry, rate.Every(cfg.Auth.OTPWindow))

	pp, err := paypal.NewClient(
		cfg.Paypal.ClientID,
		cfg.Paypal.Secret,
		cfg.Paypal.URL,
	)
	if err != nil {
		return fmt.Errorf("failed to build the paypal client: %w", err)
	}

	if _, err = pp.GetAccessToken(context.TODO()); err != nil {
		return fmt.Errorf("failed to get the first paypal access token: %w", err)
	}

	strp := &stripecl.API{}
	strp.Init(cfg.Stripe.APISecret, nil)

	mux := api.APIMux(api.APIConfig{
		CorsOrigin:    cfg.Cors.Origin,
		Log:           logger,
		Session:       sessionManager,
		Cache:         store,
		CMS:           client,
		CMSCfg:        cfg.CMS,
		Sync:          syncer,
		Background:    bg,
		Flow:          flow,
		Conversations: conversations,
		OTPLimiter:    otpLimiter,
		Paypal:        pp,
		Stripe:        strp,
		StripeCfg:     cfg.Stripe,
		Pricing: cart.Pricing{
			BulkThreshold: cfg.Pricing.BulkThreshold,
			BulkPercent:   cfg.Pricing.BulkPercent,
		},
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		if err := bg.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not complete all background tasks: %w", err)
		}

		// Deliver what the queue still holds before exiting.
		syncer.Flush(ctx)
	}
	return nil
}
