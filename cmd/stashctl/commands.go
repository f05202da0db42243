package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	natsadapter "github.com/samirrijal/stashpoint/internal/adapters/nats"
	"github.com/samirrijal/stashpoint/internal/core/domain"
	"github.com/samirrijal/stashpoint/internal/core/ports"
	"github.com/samirrijal/stashpoint/internal/core/usecases"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find stashpoints that can take the bags for a window",
	RunE:  runSearch,
}

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.json>",
	Short: "Import customers, stashpoints and bookings from a JSON fixture",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List stashpoints booked beyond capacity during a window",
	RunE:  runAudit,
}

var (
	lat, lng, radiusKm float64
	dropoff, pickup    string
	bagCount           int

	seedPublish bool

	auditFrom, auditTo string
	auditPublish       bool
)

func init() {
	searchCmd.Flags().Float64Var(&lat, "lat", 0, "Latitude of the search point")
	searchCmd.Flags().Float64Var(&lng, "lng", 0, "Longitude of the search point")
	searchCmd.Flags().Float64VarP(&radiusKm, "radius", "r", 0, "Search radius in km (default from config)")
	searchCmd.Flags().StringVar(&dropoff, "dropoff", "", "Drop-off datetime, ISO 8601")
	searchCmd.Flags().StringVar(&pickup, "pickup", "", "Pick-up datetime, ISO 8601")
	searchCmd.Flags().IntVarP(&bagCount, "bags", "b", 1, "Number of bags")
	_ = searchCmd.MarkFlagRequired("lat")
	_ = searchCmd.MarkFlagRequired("lng")
	_ = searchCmd.MarkFlagRequired("dropoff")
	_ = searchCmd.MarkFlagRequired("pickup")

	seedCmd.Flags().BoolVar(&seedPublish, "publish", true, "Announce the change on NATS")

	auditCmd.Flags().StringVar(&auditFrom, "dropoff", "", "Window start, ISO 8601 (default now)")
	auditCmd.Flags().StringVar(&auditTo, "pickup", "", "Window end, ISO 8601 (default start + 24h)")
	auditCmd.Flags().BoolVar(&auditPublish, "publish", false, "Report anomalies on NATS")
}

func runSearch(cmd *cobra.Command, args []string) error {
	q := domain.SearchQuery{Lat: lat, Lng: lng, BagCount: bagCount, RadiusKm: radiusKm}
	var err error
	if q.Dropoff, err = domain.ParseDateTime(dropoff); err != nil {
		return err
	}
	if q.Pickup, err = domain.ParseDateTime(pickup); err != nil {
		return err
	}
	if err := q.Validate(); err != nil {
		return err
	}

	b, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	opts := usecases.DefaultSearchOptions()
	opts.DefaultRadiusKm = b.cfg.Search.DefaultRadiusKm
	opts.CapacityMode = b.cfg.Search.CapacityMode
	opts.Parallelism = b.cfg.Search.Parallelism
	opts.CandidateTTL = 0

	svc := usecases.NewSearchService(b.stashpoints, b.bookings, b.snapshots, nil, nil, opts)
	results, err := svc.FindAvailable(cmd.Context(), q)
	if err != nil {
		return err
	}
	return printJSON(results)
}

func runSeed(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var inv domain.Inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}

	b, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	var events ports.EventPublisher
	if seedPublish {
		pub, err := natsadapter.NewPublisher(b.cfg.NATS.URL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: nats unavailable, change not announced: %v\n", err)
		} else {
			defer pub.Close()
			events = pub
		}
	}

	// Seeding always writes through to the database.
	importer := usecases.NewInventoryService(b.customers, b.pgStashpoints, b.pgBookings, events)
	change, err := importer.Import(cmd.Context(), &inv)
	if err != nil {
		return err
	}
	fmt.Printf("seeded %d customers, %d stashpoints, %d bookings\n",
		len(inv.Customers), len(change.StashpointIDs), change.Bookings)
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	start := time.Now().UTC().Truncate(time.Minute)
	w := domain.Window{Dropoff: start, Pickup: start.Add(24 * time.Hour)}
	var err error
	if auditFrom != "" {
		if w.Dropoff, err = domain.ParseDateTime(auditFrom); err != nil {
			return err
		}
		w.Pickup = w.Dropoff.Add(24 * time.Hour)
	}
	if auditTo != "" {
		if w.Pickup, err = domain.ParseDateTime(auditTo); err != nil {
			return err
		}
	}

	b, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	var events ports.EventPublisher
	if auditPublish {
		pub, err := natsadapter.NewPublisher(b.cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer pub.Close()
		events = pub
	}

	svc := usecases.NewAuditService(b.stashpoints, b.bookings, events)
	anomalies, err := svc.FindOverbooked(cmd.Context(), w)
	if err != nil {
		return err
	}
	if auditPublish {
		sent := svc.Report(cmd.Context(), anomalies)
		fmt.Fprintf(os.Stderr, "reported %d of %d anomalies\n", sent, len(anomalies))
	}
	return printJSON(anomalies)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
