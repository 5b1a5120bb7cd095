// Package connector is a delivery host that posts activities to a Bot
// Framework style connector REST service.
package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/notifyhub/reminder-scheduler/internal/destination"
	"github.com/notifyhub/reminder-scheduler/internal/dispatch"
	"github.com/notifyhub/reminder-scheduler/internal/ratelimiter"
)

// DefaultScope is the OAuth scope connector tokens are issued for.
const DefaultScope = "https://api.botframework.com/.default"

var (
	ErrAudienceMismatch = errors.New("claims audience does not match")
	ErrAppIDMismatch    = errors.New("claims identity belongs to another app")
	ErrNilIdentity      = errors.New("nil claims identity")
)

// Config configures a Host.
type Config struct {
	AppID       string
	AppPassword string
	// TenantID selects the token authority; empty means the multi-tenant
	// botframework.com authority.
	TenantID string
	// TokenURL overrides the authority derived from TenantID.
	TokenURL string
	Timeout  time.Duration
	// RatePerChannel caps sends per second per channel id; <= 0 disables it.
	RatePerChannel int
}

// Host continues conversations by posting to the serviceUrl stored in the
// reference. It supports the callback-first and claims-based conventions.
//
// When both AppID and AppPassword are set every request carries a bearer
// token obtained with the OAuth2 client-credentials grant; otherwise requests
// are anonymous, which local emulators accept.
type Host struct {
	appID      string
	httpClient *http.Client
	limiter    *ratelimiter.KeyedLimiters
	logger     *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Host {
	base := &http.Client{Timeout: cfg.Timeout}
	client := base

	if cfg.AppID != "" && cfg.AppPassword != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.AppPassword,
			TokenURL:     tokenURL(cfg),
			Scopes:       []string{DefaultScope},
		}
		// The token fetch reuses base so it honours the same timeout.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = cc.Client(ctx)
		client.Timeout = cfg.Timeout
	}

	return &Host{
		appID:      cfg.AppID,
		httpClient: client,
		limiter:    ratelimiter.New(cfg.RatePerChannel),
		logger:     logger,
	}
}

func tokenURL(cfg Config) string {
	if cfg.TokenURL != "" {
		return cfg.TokenURL
	}
	tenant := cfg.TenantID
	if tenant == "" {
		tenant = "botframework.com"
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenant)
}

// ContinueConversation runs cb with a turn context bound to ref.
func (h *Host) ContinueConversation(ctx context.Context, cb dispatch.Callback, ref destination.Reference, appID string) error {
	if h.appID != "" && appID != "" && appID != h.appID {
		return fmt.Errorf("%w: %q", ErrAppIDMismatch, appID)
	}
	return cb(ctx, h.turn(ref))
}

// CreateClaimsIdentity returns the identity the bot speaks as.
func (h *Host) CreateClaimsIdentity(appID string) *dispatch.ClaimsIdentity {
	return dispatch.NewClaimsIdentity(appID)
}

// ContinueConversationWithClaims runs cb on behalf of identity after checking
// that audience and the identity's app id match this host.
func (h *Host) ContinueConversationWithClaims(
	ctx context.Context,
	identity *dispatch.ClaimsIdentity,
	ref destination.Reference,
	audience string,
	cb dispatch.Callback,
) error {
	if identity == nil {
		return ErrNilIdentity
	}
	if got := identity.Audience(); audience != got {
		return fmt.Errorf("%w: want %q, identity has %q", ErrAudienceMismatch, audience, got)
	}
	if h.appID != "" && identity.AppID() != h.appID {
		return fmt.Errorf("%w: %q", ErrAppIDMismatch, identity.AppID())
	}
	return cb(ctx, h.turn(ref))
}

func (h *Host) turn(ref destination.Reference) *turnContext {
	return &turnContext{
		ref:     ref,
		client:  h.httpClient,
		limiter: h.limiter,
		logger:  h.logger,
	}
}

// compile-time checks for the conventions Host supports
var (
	_ dispatch.CallbackFirstHost = (*Host)(nil)
	_ dispatch.ClaimsHost        = (*Host)(nil)
)
