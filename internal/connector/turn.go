package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/notifyhub/reminder-scheduler/internal/destination"
	"github.com/notifyhub/reminder-scheduler/internal/ratelimiter"
)

// StatusError is returned when the connector answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("connector returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("connector returned status %d: %s", e.StatusCode, e.Body)
}

// resourceResponse is the body the connector returns for a created activity.
type resourceResponse struct {
	ID string `json:"id"`
}

// turnContext posts activities into one conversation.
type turnContext struct {
	ref     destination.Reference
	client  *http.Client
	limiter *ratelimiter.KeyedLimiters
	logger  *zap.Logger
}

// SendActivity posts text as a message activity from the bot to the
// conversation. When the reference remembers the activity it was taken
// from, the message is sent as a reply to it.
func (t *turnContext) SendActivity(ctx context.Context, text string) error {
	if err := t.limiter.Wait(ctx, t.ref.ChannelID); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	body, err := json.Marshal(destination.Activity{
		Type:         "message",
		ChannelID:    t.ref.ChannelID,
		ServiceURL:   t.ref.ServiceURL,
		Locale:       t.ref.Locale,
		From:         t.ref.Bot,
		Recipient:    t.ref.User,
		Conversation: t.ref.Conversation,
		Text:         text,
	})
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, activitiesURL(t.ref), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var rr resourceResponse
	// Some connectors answer 201 with an empty body.
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}

	t.logger.Debug("activity posted",
		zap.String("conversation_id", t.ref.Conversation.ID),
		zap.String("activity_id", rr.ID),
	)
	return nil
}

// activitiesURL builds {serviceUrl}/v3/conversations/{id}/activities[/{replyToId}].
func activitiesURL(ref destination.Reference) string {
	u := strings.TrimRight(ref.ServiceURL, "/") +
		"/v3/conversations/" + url.PathEscape(ref.Conversation.ID) + "/activities"
	if ref.ActivityID != "" {
		u += "/" + url.PathEscape(ref.ActivityID)
	}
	return u
}
