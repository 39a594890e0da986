package config

import "time"

type Config struct {
	Web     Web
	Cors    Cors
	DB      DB
	CMS     CMS
	Auth    Auth
	Stripe  Stripe
	Paypal  Paypal
	Pricing Pricing
	Chat    Chat
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:4000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Cors struct {
	Origin string
}

// DB configures the optional Postgres-backed fallback cache. When the host is
// empty the server runs with the in-memory cache only.
type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string
	Name       string `conf:"default:garagely"`
	DisableTLS bool   `conf:"default:true"`
}

type CMS struct {
	URL     string        `conf:"default:http://localhost:1337/api"`
	Timeout time.Duration `conf:"default:10s"`

	// ServiceToken authorizes webhook-driven writes that have no user
	// session behind them.
	ServiceToken string `conf:"mask"`
}

type Auth struct {
	OTPBurst  int           `conf:"default:3"`
	OTPWindow time.Duration `conf:"default:30s"`
	OTPExpiry int           `conf:"default:10"`
}

type Stripe struct {
	APISecret     string `conf:"mask"`
	WebhookSecret string `conf:"mask"`
	SuccessURL    string `conf:"default:http://localhost:3000/checkout/success"`
	CancelURL     string `conf:"default:http://localhost:3000/checkout/cancel"`
}

type Paypal struct {
	ClientID string
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api.sandbox.paypal.com"`
}

// Pricing holds the bulk-discount knobs. The discount is computed with
// integer math (subtotal × percent / 100) which floors exactly like the
// documented behavior.
type Pricing struct {
	BulkThreshold int `conf:"default:3"`
	BulkPercent   int `conf:"default:5"`
}

type Chat struct {
	SupportPhone    string        `conf:"default:919999999999"`
	RedirectDelay   time.Duration `conf:"default:6s"`
	StepDelay       time.Duration `conf:"default:600ms"`
	SessionLifetime time.Duration `conf:"default:24h"`
}
