package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samirrijal/stashpoint/internal/adapters/memory"
	"github.com/samirrijal/stashpoint/internal/adapters/postgres"
	"github.com/samirrijal/stashpoint/internal/core/ports"
	"github.com/samirrijal/stashpoint/internal/pkg/config"
	"github.com/samirrijal/stashpoint/internal/pkg/logging"
)

var (
	storeOverride string
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "stashctl",
	Short: "Operate the stashpoint availability service",
	Long:  `Search availability, seed inventory and audit capacity against the configured database.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logging.Setup(level, "text")
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeOverride, "store", "", "search store: postgres or memory (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(searchCmd, seedCmd, auditCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// backend is the storage a command runs against.
type backend struct {
	cfg         *config.Config
	db          *postgres.DB
	customers   ports.CustomerRepository
	stashpoints ports.StashpointRepository
	bookings    ports.BookingRepository
	snapshots   ports.SnapshotReader

	// Database repositories, used for writes whatever the search store.
	pgStashpoints *postgres.StashpointRepo
	pgBookings    *postgres.BookingRepo
}

func openBackend(ctx context.Context) (*backend, error) {
	cfg, err := config.Load("stashctl")
	if err != nil {
		return nil, err
	}
	if storeOverride != "" {
		cfg.Search.Store = storeOverride
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	b := &backend{
		cfg:           cfg,
		db:            db,
		customers:     postgres.NewCustomerRepo(db),
		pgStashpoints: postgres.NewStashpointRepo(db),
		pgBookings:    postgres.NewBookingRepo(db),
	}
	b.stashpoints, b.bookings = b.pgStashpoints, b.pgBookings
	if cfg.Search.SnapshotReads {
		b.snapshots = db
	}

	if cfg.Search.Store == config.StoreMemory {
		store := memory.NewStore()
		if err := store.Reload(ctx, b.pgStashpoints, b.pgBookings); err != nil {
			db.Close()
			return nil, fmt.Errorf("load memory store: %w", err)
		}
		b.stashpoints, b.bookings, b.snapshots = store, store, store
	}
	return b, nil
}

func (b *backend) Close() {
	b.db.Close()
}
