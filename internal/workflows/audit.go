package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/stashpoint/internal/core/domain"
)

// AuditWorkflowID is the ID the scheduled audit runs under.
const AuditWorkflowID = "stashpoint-overbooking-audit"

// DefaultAuditHorizon is how far ahead an audit looks when no window is given.
const DefaultAuditHorizon = 24 * time.Hour

// AuditInput is the input for the over-booking audit workflow. A zero window
// audits [now, now+Horizon).
type AuditInput struct {
	Dropoff time.Time
	Pickup  time.Time
	Horizon time.Duration
}

// AuditResult summarises one audit run.
type AuditResult struct {
	Window     domain.Window
	Overbooked int
	Reported   int
}

// OverbookingAuditWorkflow scans every stashpoint for bookings beyond
// capacity over a window and reports what it finds. It never changes data.
func OverbookingAuditWorkflow(ctx workflow.Context, input AuditInput) (AuditResult, error) {
	logger := workflow.GetLogger(ctx)

	w := domain.Window{Dropoff: input.Dropoff.UTC(), Pickup: input.Pickup.UTC()}
	if input.Dropoff.IsZero() || input.Pickup.IsZero() {
		horizon := input.Horizon
		if horizon <= 0 {
			horizon = DefaultAuditHorizon
		}
		now := workflow.Now(ctx).UTC().Truncate(time.Minute)
		w = domain.Window{Dropoff: now, Pickup: now.Add(horizon)}
	}
	logger.Info("Starting over-booking audit", "dropoff", w.Dropoff, "pickup", w.Pickup)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	result := AuditResult{Window: w}

	var anomalies []domain.CapacityAnomaly
	if err := workflow.ExecuteActivity(ctx, "FindOverbooked", w).Get(ctx, &anomalies); err != nil {
		return result, err
	}
	result.Overbooked = len(anomalies)
	if len(anomalies) == 0 {
		logger.Info("No over-booked stashpoints")
		return result, nil
	}

	// Reporting is best-effort; a failure here does not fail the audit.
	if err := workflow.ExecuteActivity(ctx, "ReportAnomalies", anomalies).Get(ctx, &result.Reported); err != nil {
		logger.Warn("reporting anomalies failed", "error", err)
	}

	logger.Info("Over-booking audit finished", "overbooked", result.Overbooked, "reported", result.Reported)
	return result, nil
}
