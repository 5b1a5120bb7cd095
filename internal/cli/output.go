package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/notifyhub/reminder-scheduler/internal/destination"
	"github.com/notifyhub/reminder-scheduler/internal/domain"
)

// reminderView is what show prints: the record plus its decoded destination,
// or why the destination cannot be decoded.
type reminderView struct {
	*domain.Reminder
	Destination *destination.Reference `json:"destination,omitempty"`
	DecodeError string                 `json:"decode_error,omitempty"`
}

// output writes data as indented JSON or as the text produced by text.
func output(cmd *cobra.Command, opts *RootOptions, data any, text func() string) error {
	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	_, err := fmt.Fprintln(w, text())
	return err
}

func formatReminder(r *domain.Reminder) string {
	state := "pending"
	if r.Sent {
		state = "sent"
	}
	return fmt.Sprintf("#%d  %s  %-7s  %s", r.ID, r.DueAt.UTC().Format(time.RFC3339), state, r.Text)
}

func formatView(v reminderView) string {
	s := formatReminder(v.Reminder)
	switch {
	case v.Destination != nil:
		s += fmt.Sprintf("\n    channel=%s conversation=%s service=%s",
			v.Destination.ChannelID, v.Destination.Conversation.ID, v.Destination.ServiceURL)
	case v.DecodeError != "":
		s += "\n    undeliverable: " + v.DecodeError
	}
	return s
}
