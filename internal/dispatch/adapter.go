package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/notifyhub/reminder-scheduler/internal/destination"
	"github.com/notifyhub/reminder-scheduler/internal/domain"
)

var errCallbackNotRun = errors.New("host returned without running the send callback")

// Strategy is one way of getting a Callback executed by the host.
type Strategy struct {
	Convention string
	Deliver    func(ctx context.Context, ref destination.Reference, cb Callback) error
}

// Strategies lists the conventions host supports, callback-first, then
// reference-first, then claims-based.
func Strategies(host any, appID string) []Strategy {
	var out []Strategy
	if h, ok := host.(CallbackFirstHost); ok {
		out = append(out, Strategy{
			Convention: ConventionCallbackFirst,
			Deliver: func(ctx context.Context, ref destination.Reference, cb Callback) error {
				return h.ContinueConversation(ctx, cb, ref, appID)
			},
		})
	}
	if h, ok := host.(ReferenceFirstHost); ok {
		out = append(out, Strategy{
			Convention: ConventionReferenceFirst,
			Deliver: func(ctx context.Context, ref destination.Reference, cb Callback) error {
				return h.ContinueConversationReference(ctx, ref, cb, appID)
			},
		})
	}
	if h, ok := host.(ClaimsHost); ok {
		out = append(out, Strategy{
			Convention: ConventionClaims,
			Deliver: func(ctx context.Context, ref destination.Reference, cb Callback) error {
				identity := h.CreateClaimsIdentity(appID)
				// Local hosts accept an empty audience.
				return h.ContinueConversationWithClaims(ctx, identity, ref, identity.Audience(), cb)
			},
		})
	}
	return out
}

// Adapter delivers text by trying each strategy once, in order, until one
// succeeds. It never touches the reminder store.
type Adapter struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewAdapter builds an Adapter for host. It fails with domain.ErrNoConvention
// when host implements none of the known conventions.
func NewAdapter(host any, appID string, logger *zap.Logger) (*Adapter, error) {
	strategies := Strategies(host, appID)
	if len(strategies) == 0 {
		return nil, fmt.Errorf("%w: %T", domain.ErrNoConvention, host)
	}
	return NewAdapterWithStrategies(strategies, logger), nil
}

// NewAdapterWithStrategies builds an Adapter from an explicit strategy list.
func NewAdapterWithStrategies(strategies []Strategy, logger *zap.Logger) *Adapter {
	return &Adapter{strategies: strategies, logger: logger}
}

// Conventions returns the convention names in the order they are tried.
func (a *Adapter) Conventions() []string {
	names := make([]string, len(a.strategies))
	for i, s := range a.strategies {
		names[i] = s.Convention
	}
	return names
}

// Send delivers text to ref and returns the convention that succeeded.
// When every convention fails the error is a *domain.DispatchError whose
// Unwrap is the last failure.
func (a *Adapter) Send(ctx context.Context, ref destination.Reference, text string) (string, error) {
	dispatchErr := &domain.DispatchError{}

	for _, s := range a.strategies {
		err := attempt(ctx, s, ref, text)
		if err == nil {
			return s.Convention, nil
		}
		a.logger.Debug("delivery convention failed",
			zap.String("convention", s.Convention),
			zap.String("conversation_id", ref.Conversation.ID),
			zap.Error(err),
		)
		dispatchErr.Attempts = append(dispatchErr.Attempts, domain.ConventionFailure{
			Convention: s.Convention,
			Err:        err,
		})
	}
	return "", dispatchErr
}

// attempt runs one strategy and turns every way it can go wrong into an
// error: a returned error, a panic, a swallowed callback error, or a host
// that reports success without ever running the callback.
func attempt(ctx context.Context, s Strategy, ref destination.Reference, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", s.Convention, r)
		}
	}()

	var (
		ran     bool
		sendErr error
	)
	cb := func(ctx context.Context, tc TurnContext) error {
		ran = true
		sendErr = tc.SendActivity(ctx, text)
		return sendErr
	}

	if err := s.Deliver(ctx, ref, cb); err != nil {
		return err
	}
	if !ran {
		return errCallbackNotRun
	}
	return sendErr
}
