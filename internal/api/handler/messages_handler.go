package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	apimw "github.com/notifyhub/reminder-scheduler/internal/api/middleware"
	"github.com/notifyhub/reminder-scheduler/internal/destination"
	"github.com/notifyhub/reminder-scheduler/internal/service"
)

const helpText = "Hi! I'm your reminder bot.\n\n" +
	"**Commands**\n" +
	"- `echo <text>`: I'll repeat `<text>`\n" +
	"- `/remind <N> <message>`: I'll remind you in N minutes\n\n" +
	"Example: `/remind 5 stand up`"

var remindCmd = regexp.MustCompile(`(?i)^/remind\s+(\d+)\s+(.+)$`)

// inboundActivity is what a channel posts to the messaging endpoint.
type inboundActivity struct {
	destination.Activity
	MembersAdded []destination.ChannelAccount `json:"membersAdded,omitempty"`
}

// MessagesHandler turns chat commands into reminders. Replies are returned
// in the response body rather than posted back through the connector.
type MessagesHandler struct {
	svc    *service.ReminderService
	loc    *time.Location
	logger *zap.Logger
}

func NewMessagesHandler(svc *service.ReminderService, loc *time.Location, logger *zap.Logger) *MessagesHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &MessagesHandler{svc: svc, loc: loc, logger: logger}
}

// Receive handles POST /api/messages
//
// @Summary  Inbound chat activity (/remind, /help, echo)
// @Tags     messages
// @Accept   json
// @Produce  json
// @Success  200  {object}  destination.Activity
// @Router   /api/messages [post]
func (h *MessagesHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var in inboundActivity
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch in.Type {
	case "message":
		h.onMessage(w, r, &in.Activity)
	case "conversationUpdate":
		if len(in.MembersAdded) > 0 {
			respondJSON(w, http.StatusOK, reply(&in.Activity, helpText))
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (h *MessagesHandler) onMessage(w http.ResponseWriter, r *http.Request, in *destination.Activity) {
	text := strings.TrimSpace(in.Text)

	if m := remindCmd.FindStringSubmatch(text); m != nil {
		minutes, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			respondJSON(w, http.StatusOK, reply(in, "That is too many minutes."))
			return
		}

		rem, err := h.svc.Create(r.Context(), service.CreateReminderRequest{
			DueInMinutes: uint(minutes),
			Text:         strings.TrimSpace(m[2]),
			Activity:     in,
		})
		if err != nil {
			apimw.Logger(r.Context(), h.logger).Warn("reminder command failed", zap.Error(err))
			mapError(w, err)
			return
		}

		when := rem.DueAt.In(h.loc).Format("15:04")
		respondJSON(w, http.StatusOK, reply(in,
			fmt.Sprintf("Got it. I'll remind you at ~%s (%s). [id=%d]", when, h.loc.String(), rem.ID)))
		return
	}

	lower := strings.ToLower(text)
	switch {
	case lower == "/help":
		respondJSON(w, http.StatusOK, reply(in, helpText))
	case strings.HasPrefix(lower, "echo "):
		respondJSON(w, http.StatusOK, reply(in, text[len("echo "):]))
	default:
		respondJSON(w, http.StatusOK, reply(in, "Try `echo ...` or `/remind N ...` (or `/help`)."))
	}
}

// reply addresses text back to the sender of in.
func reply(in *destination.Activity, text string) destination.Activity {
	return destination.Activity{
		Type:         "message",
		ChannelID:    in.ChannelID,
		ServiceURL:   in.ServiceURL,
		Locale:       in.Locale,
		From:         in.Recipient,
		Recipient:    in.From,
		Conversation: in.Conversation,
		Text:         text,
	}
}
