package connector_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notifyhub/reminder-scheduler/internal/connector"
	"github.com/notifyhub/reminder-scheduler/internal/destination"
	"github.com/notifyhub/reminder-scheduler/internal/dispatch"
)

type captured struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

// connectorServer mimics the connector REST API and records every request.
type connectorServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []captured
	status   int
}

func newConnectorServer(t *testing.T, status int) *connectorServer {
	t.Helper()
	cs := &connectorServer{status: status}
	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok-123","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/v3/conversations/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		cs.mu.Lock()
		cs.requests = append(cs.requests, captured{
			Method: r.Method,
			Path:   r.URL.Path,
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		})
		cs.mu.Unlock()
		w.WriteHeader(cs.status)
		if cs.status < 300 {
			_, _ = io.WriteString(w, `{"id":"act-1"}`)
		} else {
			_, _ = io.WriteString(w, `{"error":{"code":"ConversationNotFound"}}`)
		}
	})

	cs.Server = httptest.NewServer(mux)
	t.Cleanup(cs.Close)
	return cs
}

func (cs *connectorServer) Requests() []captured {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]captured(nil), cs.requests...)
}

func refFor(serviceURL string) destination.Reference {
	return destination.Reference{
		ActivityID:   "1700000000000",
		User:         destination.ChannelAccount{ID: "29:user", Name: "Ada"},
		Bot:          destination.ChannelAccount{ID: "28:bot", Name: "Reminder Bot"},
		Conversation: destination.ConversationAccount{ID: "19:abc@thread.v2", IsGroup: true},
		ChannelID:    "msteams",
		ServiceURL:   serviceURL + "/",
	}
}

func sendText(text string) dispatch.Callback {
	return func(ctx context.Context, tc dispatch.TurnContext) error {
		return tc.SendActivity(ctx, text)
	}
}

func TestContinueConversation_PostsReplyActivity(t *testing.T) {
	srv := newConnectorServer(t, http.StatusCreated)
	h := connector.New(connector.Config{Timeout: time.Second}, zap.NewNop())

	err := h.ContinueConversation(context.Background(), sendText("⏰ Reminder: stand up"), refFor(srv.URL), "")
	require.NoError(t, err)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	got := reqs[0]
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/v3/conversations/19:abc@thread.v2/activities/1700000000000", got.Path)
	assert.Empty(t, got.Auth, "anonymous without credentials")
	assert.Equal(t, "message", got.Body["type"])
	assert.Equal(t, "⏰ Reminder: stand up", got.Body["text"])
	assert.Equal(t, "28:bot", got.Body["from"].(map[string]any)["id"])
	assert.Equal(t, "29:user", got.Body["recipient"].(map[string]any)["id"])
}

func TestContinueConversation_NewThreadWithoutActivityID(t *testing.T) {
	srv := newConnectorServer(t, http.StatusOK)
	h := connector.New(connector.Config{Timeout: time.Second}, zap.NewNop())

	ref := refFor(srv.URL)
	ref.ActivityID = ""
	require.NoError(t, h.ContinueConversation(context.Background(), sendText("hi"), ref, ""))

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/v3/conversations/19:abc@thread.v2/activities", reqs[0].Path)
}

func TestSendActivity_UsesClientCredentialsToken(t *testing.T) {
	srv := newConnectorServer(t, http.StatusCreated)
	h := connector.New(connector.Config{
		AppID:       "app-123",
		AppPassword: "secret",
		TokenURL:    srv.URL + "/token",
		Timeout:     time.Second,
	}, zap.NewNop())

	require.NoError(t, h.ContinueConversation(context.Background(), sendText("hi"), refFor(srv.URL), "app-123"))

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer tok-123", reqs[0].Auth)
}

func TestSendActivity_Non2xxIsError(t *testing.T) {
	srv := newConnectorServer(t, http.StatusNotFound)
	h := connector.New(connector.Config{Timeout: time.Second}, zap.NewNop())

	err := h.ContinueConversation(context.Background(), sendText("hi"), refFor(srv.URL), "")
	require.Error(t, err)

	var statusErr *connector.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "ConversationNotFound")
}

func TestSendActivity_UnreachableService(t *testing.T) {
	srv := newConnectorServer(t, http.StatusOK)
	url := srv.URL
	srv.Close()

	h := connector.New(connector.Config{Timeout: time.Second}, zap.NewNop())
	err := h.ContinueConversation(context.Background(), sendText("hi"), refFor(url), "")
	assert.Error(t, err)
}

func TestContinueConversation_RejectsForeignAppID(t *testing.T) {
	h := connector.New(connector.Config{AppID: "app-123", AppPassword: "secret"}, zap.NewNop())

	called := false
	err := h.ContinueConversation(context.Background(), func(context.Context, dispatch.TurnContext) error {
		called = true
		return nil
	}, refFor("http://localhost"), "other-app")

	assert.ErrorIs(t, err, connector.ErrAppIDMismatch)
	assert.False(t, called)
}

func TestContinueConversationWithClaims(t *testing.T) {
	srv := newConnectorServer(t, http.StatusCreated)
	h := connector.New(connector.Config{Timeout: time.Second}, zap.NewNop())
	ctx := context.Background()

	t.Run("matching audience", func(t *testing.T) {
		id := h.CreateClaimsIdentity("app-123")
		require.NoError(t, h.ContinueConversationWithClaims(ctx, id, refFor(srv.URL), "app-123", sendText("hi")))
	})

	t.Run("audience mismatch", func(t *testing.T) {
		id := h.CreateClaimsIdentity("app-123")
		err := h.ContinueConversationWithClaims(ctx, id, refFor(srv.URL), "someone-else", sendText("hi"))
		assert.ErrorIs(t, err, connector.ErrAudienceMismatch)
	})

	t.Run("nil identity", func(t *testing.T) {
		err := h.ContinueConversationWithClaims(ctx, nil, refFor(srv.URL), "", sendText("hi"))
		assert.ErrorIs(t, err, connector.ErrNilIdentity)
	})

	assert.Len(t, srv.Requests(), 1)
}

func TestHost_ThroughDispatchAdapter(t *testing.T) {
	srv := newConnectorServer(t, http.StatusCreated)
	h := connector.New(connector.Config{Timeout: time.Second}, zap.NewNop())

	a, err := dispatch.NewAdapter(h, "", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{dispatch.ConventionCallbackFirst, dispatch.ConventionClaims}, a.Conventions())

	conv, err := a.Send(context.Background(), refFor(srv.URL), "hello")
	require.NoError(t, err)
	assert.Equal(t, dispatch.ConventionCallbackFirst, conv)
	assert.Len(t, srv.Requests(), 1)
}
