package workflows

import (
	"context"
	"fmt"

	"github.com/samirrijal/stashpoint/internal/core/domain"
	"github.com/samirrijal/stashpoint/internal/core/usecases"
)

// AuditActivities holds the activity implementations for the over-booking
// audit workflow.
type AuditActivities struct {
	Audit *usecases.AuditService
}

// FindOverbooked returns the stashpoints whose concurrent bookings exceed
// their capacity at some instant of w.
func (a *AuditActivities) FindOverbooked(ctx context.Context, w domain.Window) ([]domain.CapacityAnomaly, error) {
	anomalies, err := a.Audit.FindOverbooked(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("find overbooked: %w", err)
	}
	return anomalies, nil
}

// ReportAnomalies logs, counts and publishes each anomaly and returns how
// many reached the broker.
func (a *AuditActivities) ReportAnomalies(ctx context.Context, anomalies []domain.CapacityAnomaly) (int, error) {
	return a.Audit.Report(ctx, anomalies), nil
}
