package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rachid-J/Asssurance-sub001/internal/models"
)

func seedPolicyWithWindow(store *memStore, status models.PolicyStatus, endDate time.Time) uuid.UUID {
	id := uuid.New()
	store.mu.Lock()
	store.policies[id] = models.Policy{
		ID:             id,
		PolicyNumber:   "POL-" + id.String()[:8],
		Status:         status,
		InsuranceKind:  models.KindNew,
		StartDate:      endDate.AddDate(-1, 0, 0),
		EndDate:        endDate,
		PremiumCurrent: dec("4800"),
		CreatedBy:      ownerActor.UserID,
	}
	store.mu.Unlock()
	return id
}

func TestSweep_ExpiresOnlyOverdueActives(t *testing.T) {
	store := newMemStore()
	now := time.Now()

	overdue := seedPolicyWithWindow(store, models.PolicyActive, now.Add(-24*time.Hour))
	current := seedPolicyWithWindow(store, models.PolicyActive, now.Add(24*time.Hour))
	canceled := seedPolicyWithWindow(store, models.PolicyCanceled, now.Add(-24*time.Hour))

	svc := NewExpirationService(store)
	expired, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	get := func(id uuid.UUID) models.PolicyStatus {
		p, err := store.GetByID(context.Background(), id)
		require.NoError(t, err)
		return p.Status
	}
	assert.Equal(t, models.PolicyExpired, get(overdue))
	assert.Equal(t, models.PolicyActive, get(current))
	assert.Equal(t, models.PolicyCanceled, get(canceled))
}

func TestSweep_SecondRunIsNoop(t *testing.T) {
	store := newMemStore()
	seedPolicyWithWindow(store, models.PolicyActive, time.Now().Add(-time.Hour))

	svc := NewExpirationService(store)

	expired, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	expired, err = svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), expired)
}

func TestSweep_TracksStats(t *testing.T) {
	store := newMemStore()
	seedPolicyWithWindow(store, models.PolicyActive, time.Now().Add(-time.Hour))
	seedPolicyWithWindow(store, models.PolicyActive, time.Now().Add(-time.Hour))

	svc := NewExpirationService(store)
	_, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	_, err = svc.Sweep(context.Background())
	require.NoError(t, err)

	stats := svc.GetStats()
	assert.Equal(t, int64(2), stats.TotalRuns)
	assert.Equal(t, int64(2), stats.TotalExpired)
	assert.Equal(t, int64(0), stats.FailedRuns)
	assert.WithinDuration(t, time.Now(), stats.LastRun, time.Minute)
}

func TestHealthCheck_FreshSweeperIsHealthy(t *testing.T) {
	svc := NewExpirationService(newMemStore())
	_, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.NoError(t, svc.HealthCheck())
}
