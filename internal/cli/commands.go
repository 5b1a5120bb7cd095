package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/notifyhub/reminder-scheduler/internal/destination"
	"github.com/notifyhub/reminder-scheduler/internal/service"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "migrate",
		Short:         "Create or upgrade the reminder schema",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, closeStore, err := opts.openService(cmd.Context())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			closeStore()
			return output(cmd, opts, map[string]string{"status": "migrated"}, func() string {
				return "schema is up to date"
			})
		},
	}
}

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	In       uint
	Text     string
	Activity string
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Schedule a reminder",
		Long: `Schedule a reminder for the conversation described by an activity JSON file.

Example:
  reminderctl add --in 5 --text "stand up" --activity activity.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return addReminder(cmd, opts)
		},
	}

	cmd.Flags().UintVar(&opts.In, "in", 0, "minutes from now")
	cmd.Flags().StringVar(&opts.Text, "text", "", "reminder text")
	cmd.Flags().StringVar(&opts.Activity, "activity", "", "path to the activity JSON the reminder replies to")
	_ = cmd.MarkFlagRequired("text")
	_ = cmd.MarkFlagRequired("activity")

	return cmd
}

func addReminder(cmd *cobra.Command, opts *AddOptions) error {
	raw, err := os.ReadFile(opts.Activity)
	if err != nil {
		return fmt.Errorf("read activity: %w", err)
	}
	var activity destination.Activity
	if err := json.Unmarshal(raw, &activity); err != nil {
		return fmt.Errorf("parse activity %s: %w", opts.Activity, err)
	}

	svc, closeStore, err := opts.openService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	rem, err := svc.Create(cmd.Context(), service.CreateReminderRequest{
		DueInMinutes: opts.In,
		Text:         opts.Text,
		Activity:     &activity,
	})
	if err != nil {
		return err
	}
	return output(cmd, opts.RootOptions, rem, func() string { return formatReminder(rem) })
}

// NewDueCommand creates the due command.
func NewDueCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "due",
		Short:         "List reminders the next scheduler cycle will deliver",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := opts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			due, err := svc.ListDue(cmd.Context())
			if err != nil {
				return err
			}
			return output(cmd, opts, due, func() string {
				if len(due) == 0 {
					return "nothing due"
				}
				s := ""
				for i, r := range due {
					if i > 0 {
						s += "\n"
					}
					s += formatReminder(r)
				}
				return s
			})
		},
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show one reminder and where it will be delivered",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}

			svc, closeStore, err := opts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			rem, err := svc.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}

			view := reminderView{Reminder: rem}
			if ref, err := destination.Decode(rem.Destination); err != nil {
				view.DecodeError = err.Error()
			} else {
				view.Destination = &ref
			}
			return output(cmd, opts, view, func() string { return formatView(view) })
		},
	}
}
