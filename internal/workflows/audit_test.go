package workflows_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/stashpoint/internal/adapters/memory"
	"github.com/samirrijal/stashpoint/internal/core/domain"
	"github.com/samirrijal/stashpoint/internal/core/usecases"
	"github.com/samirrijal/stashpoint/internal/workflows"
)

type recordingPublisher struct {
	anomalies []domain.CapacityAnomaly
}

func (p *recordingPublisher) PublishSearchPerformed(context.Context, *domain.SearchEvent) error {
	return nil
}

func (p *recordingPublisher) PublishInventoryChanged(context.Context, *domain.InventoryChange) error {
	return nil
}

func (p *recordingPublisher) PublishCapacityAnomaly(_ context.Context, a *domain.CapacityAnomaly) error {
	p.anomalies = append(p.anomalies, *a)
	return nil
}

func auditFixture(start time.Time) *memory.Store {
	store := memory.NewStore()
	store.Replace(
		[]domain.Stashpoint{
			{ID: "ok", Name: "Roomy", Capacity: 10, OpenFrom: domain.NewTimeOfDay(0, 0), OpenUntil: domain.NewTimeOfDay(23, 59)},
			{ID: "over", Name: "Cramped", Capacity: 2, OpenFrom: domain.NewTimeOfDay(0, 0), OpenUntil: domain.NewTimeOfDay(23, 59)},
		},
		[]domain.Booking{
			{ID: "b1", CustomerID: "c1", StashpointID: "ok", BagCount: 4, DropoffTime: start.Add(time.Hour), PickupTime: start.Add(3 * time.Hour)},
			{ID: "b2", CustomerID: "c1", StashpointID: "over", BagCount: 3, DropoffTime: start.Add(time.Hour), PickupTime: start.Add(3 * time.Hour)},
		},
	)
	return store
}

func TestOverbookingAuditWorkflow(t *testing.T) {
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	store := auditFixture(start)
	pub := &recordingPublisher{}

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&workflows.AuditActivities{Audit: usecases.NewAuditService(store, store, pub)})

	env.ExecuteWorkflow(workflows.OverbookingAuditWorkflow, workflows.AuditInput{
		Dropoff: start,
		Pickup:  start.Add(8 * time.Hour),
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result workflows.AuditResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, 1, result.Overbooked)
	assert.Equal(t, 1, result.Reported)
	require.Len(t, pub.anomalies, 1)
	assert.Equal(t, "over", pub.anomalies[0].StashpointID)
	assert.Equal(t, -1, pub.anomalies[0].AvailableCapacity)
}

func TestOverbookingAuditWorkflow_DefaultWindow(t *testing.T) {
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	store := auditFixture(start)

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.SetStartTime(start)
	env.RegisterActivity(&workflows.AuditActivities{Audit: usecases.NewAuditService(store, store, nil)})

	env.ExecuteWorkflow(workflows.OverbookingAuditWorkflow, workflows.AuditInput{Horizon: 2 * time.Hour})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result workflows.AuditResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.True(t, result.Window.Dropoff.Equal(start))
	assert.True(t, result.Window.Pickup.Equal(start.Add(2*time.Hour)))
	assert.Equal(t, 1, result.Overbooked)
	assert.Equal(t, 0, result.Reported, "nothing is published without a broker")
}

func TestOverbookingAuditWorkflow_NothingFound(t *testing.T) {
	store := memory.NewStore()

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&workflows.AuditActivities{Audit: usecases.NewAuditService(store, store, nil)})

	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	env.ExecuteWorkflow(workflows.OverbookingAuditWorkflow, workflows.AuditInput{Dropoff: start, Pickup: start.Add(time.Hour)})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result workflows.AuditResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Zero(t, result.Overbooked)
}
