package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"fieldgate.org/internal/field"
	"fieldgate.org/internal/grant"
	"fieldgate.org/internal/obs"
	"fieldgate.org/internal/resource"
	"fieldgate.org/internal/session"
)

// API wires the HTTP surface to the authorization and projection pipeline.
type API struct {
	mux     *http.ServeMux
	db      *sql.DB
	version string

	sessions  *session.Service
	grants    *grant.Resolver
	fields    *field.Resolver
	companies *resource.Service

	maxBodyBytes int64
	rateBurst    int
	ratePerSec   int
}

// Option configures API construction.
type Option func(*options)

type options struct {
	sessionTTL time.Duration
}

// WithSessionTTL overrides the credential lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *options) { o.sessionTTL = ttl }
}

// New constructs the API and registers all routes.
func New(db *sql.DB, version string, opts ...Option) (*API, error) {
	var cfg options
	for _, opt := range opts {
		opt(&cfg)
	}

	var sessionOpts []session.Option
	if cfg.sessionTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithTTL(cfg.sessionTTL))
	}
	sessions, err := session.NewService(db, sessionOpts...)
	if err != nil {
		return nil, err
	}
	grants, err := grant.NewResolver(db)
	if err != nil {
		return nil, err
	}
	fields, err := field.NewResolver(db)
	if err != nil {
		return nil, err
	}
	companies, err := resource.NewService(db)
	if err != nil {
		return nil, err
	}

	a := &API{
		mux:     http.NewServeMux(),
		db:      db,
		version: version,

		sessions:  sessions,
		grants:    grants,
		fields:    fields,
		companies: companies,

		maxBodyBytes: 1 << 20,
		rateBurst:    20,
		ratePerSec:   10,
	}

	a.mux.HandleFunc("/", a.handleRoot)
	a.mux.HandleFunc("/healthz", a.handleHealthz)
	a.mux.HandleFunc("/readyz", a.handleReadyz)
	a.mux.HandleFunc("/v1/info", a.handleInfo)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)

	a.mux.HandleFunc("/v1/companies", a.handleCompanies)
	a.mux.HandleFunc("/v1/companies/", a.handleCompanyByID)

	return a, nil
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withSession(h)
	h = obs.Instrument(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

func (a *API) ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.db.PingContext(ctx); err != nil {
		obs.SetReady(false)
		return err
	}
	obs.SetReady(true)
	return nil
}
