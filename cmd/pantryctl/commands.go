package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pantrymind/pantrymind-backend/internal/inventory/events"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/service"
	"github.com/pantrymind/pantrymind-backend/pkg/actor"
	"github.com/pantrymind/pantrymind-backend/pkg/auth"
	"github.com/pantrymind/pantrymind-backend/pkg/config"
	"github.com/pantrymind/pantrymind-backend/pkg/database"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
	"github.com/pantrymind/pantrymind-backend/pkg/messaging"
	"github.com/spf13/cobra"
)

var (
	cfg *config.Config
	log *logger.Logger

	atFlag     string
	noEvents   bool
	tokenUser  string
	tokenName  string
	tokenKitch string

	rootCmd = &cobra.Command{
		Use:           "pantryctl",
		Short:         "Maintenance commands for the pantry inventory service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load("inventory-service")
			if err != nil {
				return err
			}
			// stdout carries the JSON reports
			log = logger.NewWithWriter(os.Stderr, "pantryctl")
			return nil
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the inventory schema",
		RunE:  runMigrate,
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Run the expiry sweep once",
		RunE:  runSweep,
	}

	alertsCmd = &cobra.Command{
		Use:   "alerts",
		Short: "Run the kitchen alert pass once",
		RunE:  runAlerts,
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for local testing",
		RunE:  runToken,
	}
)

func init() {
	for _, c := range []*cobra.Command{sweepCmd, alertsCmd} {
		c.Flags().StringVar(&atFlag, "at", "", "evaluate as of this RFC 3339 instant instead of now")
		c.Flags().BoolVar(&noEvents, "no-events", false, "do not publish notification events")
	}

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user ID")
	tokenCmd.Flags().StringVar(&tokenKitch, "kitchen", "", "kitchen ID")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name")
	_ = tokenCmd.MarkFlagRequired("user")
	_ = tokenCmd.MarkFlagRequired("kitchen")

	rootCmd.AddCommand(migrateCmd, sweepCmd, alertsCmd, tokenCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(cmd.Context(), repository.Migrations); err != nil {
		return err
	}
	log.Info().Int("statements", len(repository.Migrations)).Msg("schema up to date")
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	return withService(cmd.Context(), func(ctx context.Context, svc *service.InventoryService, now time.Time) error {
		report, err := svc.RunExpirySweep(ctx, now)
		if err != nil {
			return err
		}
		return printJSON(report)
	})
}

func runAlerts(cmd *cobra.Command, args []string) error {
	return withService(cmd.Context(), func(ctx context.Context, svc *service.InventoryService, now time.Time) error {
		report, err := svc.RunAlertPass(ctx, now)
		if err != nil {
			return err
		}
		return printJSON(report)
	})
}

func runToken(cmd *cobra.Command, args []string) error {
	token, err := auth.NewManager(&cfg.JWT).Issue(&actor.Actor{
		ID:        tokenUser,
		Name:      tokenName,
		KitchenID: tokenKitch,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

// withService builds the inventory service the way the server does and
// hands fn the evaluation instant.
func withService(ctx context.Context, fn func(ctx context.Context, svc *service.InventoryService, now time.Time) error) error {
	now := time.Now()
	if atFlag != "" {
		t, err := time.Parse(time.RFC3339, atFlag)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		now = t
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	var publisher *events.InventoryEventPublisher
	if !noEvents {
		rmq, err := messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			return fmt.Errorf("connect to RabbitMQ (use --no-events to skip): %w", err)
		}
		defer rmq.Close()
		if publisher, err = events.NewInventoryEventPublisher(rmq, log); err != nil {
			return err
		}
	}

	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	return fn(ctx, service.NewInventoryService(service.NewPostgresStores(db), publisher, opts, log), now)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
