// Package dispatch delivers reminder text through whatever proactive
// "continue conversation" entry point the messaging host exposes.
//
// Hosts differ in how that entry point is shaped. Some take the callback
// first, some take the reference first, and some only accept a claims
// identity. Each shape is an interface here; the Adapter tries every shape
// the host implements, in a fixed order.
package dispatch

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/notifyhub/reminder-scheduler/internal/destination"
)

// Convention names, in the order the Adapter tries them.
const (
	ConventionCallbackFirst  = "callback_first"
	ConventionReferenceFirst = "reference_first"
	ConventionClaims         = "claims"
)

// TurnContext is the handle a host gives a Callback for one continued turn.
type TurnContext interface {
	SendActivity(ctx context.Context, text string) error
}

// Callback runs inside a continued conversation.
type Callback func(ctx context.Context, tc TurnContext) error

// CallbackFirstHost is the agents-SDK shape: (callback, reference, app id).
type CallbackFirstHost interface {
	ContinueConversation(ctx context.Context, cb Callback, ref destination.Reference, appID string) error
}

// ReferenceFirstHost is the bot-builder shape: (reference, callback, app id).
type ReferenceFirstHost interface {
	ContinueConversationReference(ctx context.Context, ref destination.Reference, cb Callback, appID string) error
}

// ClaimsHost continues a conversation on behalf of a claims identity.
type ClaimsHost interface {
	CreateClaimsIdentity(appID string) *ClaimsIdentity
	ContinueConversationWithClaims(ctx context.Context, identity *ClaimsIdentity, ref destination.Reference, audience string, cb Callback) error
}

// ClaimsIdentity is the identity a claims-based continuation runs under.
type ClaimsIdentity struct {
	Claims          jwt.MapClaims
	IsAuthenticated bool
}

// NewClaimsIdentity builds the identity a bot uses to talk as itself.
// An empty appID yields an anonymous identity, which local emulators accept.
func NewClaimsIdentity(appID string) *ClaimsIdentity {
	claims := jwt.MapClaims{"ver": "1.0"}
	if appID != "" {
		claims["aud"] = appID
		claims["appid"] = appID
	}
	return &ClaimsIdentity{Claims: claims, IsAuthenticated: appID != ""}
}

// AppID returns the application the identity speaks for ("appid" for v1
// tokens, "azp" for v2), or "" when anonymous.
func (c *ClaimsIdentity) AppID() string {
	if c == nil {
		return ""
	}
	for _, k := range []string{"appid", "azp"} {
		if v, ok := c.Claims[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Audience returns the first "aud" claim, or "" when none is set.
func (c *ClaimsIdentity) Audience() string {
	if c == nil {
		return ""
	}
	aud, err := c.Claims.GetAudience()
	if err != nil || len(aud) == 0 {
		return ""
	}
	return aud[0]
}
