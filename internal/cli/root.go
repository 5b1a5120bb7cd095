// Package cli implements reminderctl, the operator command line for the
// reminder store.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notifyhub/reminder-scheduler/internal/config"
	"github.com/notifyhub/reminder-scheduler/internal/repository"
	"github.com/notifyhub/reminder-scheduler/internal/service"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DB     string // overrides REMINDERS_DB
	Format string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for reminderctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "reminderctl",
		Short: "Inspect and seed the reminder store",
		Long:  "Operator tooling for the reminder scheduler: create the schema, add reminders and inspect what is due.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "store location (SQLite path or postgres:// URL); defaults to REMINDERS_DB")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewDueCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))

	return cmd
}

func (o *RootOptions) config() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.DB != "" {
		cfg.StoreLocation = o.DB
	}
	return cfg, nil
}

// openService opens (and migrates) the configured store.
func (o *RootOptions) openService(ctx context.Context) (*service.ReminderService, func(), error) {
	cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}
	repo, closeStore, err := repository.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return service.NewReminderService(repo, nil, zap.NewNop(), nil), closeStore, nil
}
