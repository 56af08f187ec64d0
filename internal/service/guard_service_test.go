package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsuits/ues-sync/internal/models"
	"github.com/lsuits/ues-sync/pkg/config"
	appErrors "github.com/lsuits/ues-sync/pkg/errors"
)

func guardConfig() config.SyncConfig {
	return config.SyncConfig{Enabled: true, GracePeriod: time.Hour}
}

func TestGuardAcquireCreatesRunningRun(t *testing.T) {
	runs := &fakeRuns{}
	guard := NewGuardService(nil, runs, guardConfig(), nil)

	run, err := guard.Acquire(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, run.Status)
	require.Len(t, runs.items, 1)
}

func TestGuardAcquireDisabled(t *testing.T) {
	cfg := guardConfig()
	cfg.Enabled = false
	guard := NewGuardService(nil, &fakeRuns{}, cfg, nil)

	_, err := guard.Acquire(context.Background(), false)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrRunDisabled))

	// Force overrides the disabled flag.
	_, err = guard.Acquire(context.Background(), true)
	require.NoError(t, err)
}

func TestGuardAcquireRejectsRunningRun(t *testing.T) {
	runs := &fakeRuns{}
	require.NoError(t, runs.Create(context.Background(), &models.Run{Status: models.RunStatusRunning, StartedAt: time.Now().Add(-time.Minute)}))
	guard := NewGuardService(nil, runs, guardConfig(), nil)

	_, err := guard.Acquire(context.Background(), false)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrRunInProgress))
}

func TestGuardAcquireForceBypassesRunningRun(t *testing.T) {
	runs := &fakeRuns{}
	require.NoError(t, runs.Create(context.Background(), &models.Run{Status: models.RunStatusRunning, StartedAt: time.Now().Add(-time.Minute)}))
	guard := NewGuardService(nil, runs, guardConfig(), nil)

	// Force admits a run even while another is inside its grace period.
	run, err := guard.Acquire(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, run.Forced)
	assert.Equal(t, models.RunStatusRunning, run.Status)
}

func TestGuardAcquireStaleRunningFlagLapses(t *testing.T) {
	runs := &fakeRuns{}
	require.NoError(t, runs.Create(context.Background(), &models.Run{Status: models.RunStatusRunning, StartedAt: time.Now().Add(-2 * time.Hour)}))
	guard := NewGuardService(nil, runs, guardConfig(), nil)

	// The stale flag is older than the grace period; a new run is admitted.
	run, err := guard.Acquire(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, run.Status)
}

func TestGuardAcquireTooSoonAfterFinish(t *testing.T) {
	runs := &fakeRuns{}
	finished := time.Now().Add(-10 * time.Minute)
	require.NoError(t, runs.Create(context.Background(), &models.Run{
		Status: models.RunStatusSucceeded, StartedAt: finished.Add(-time.Hour),
	}))
	runs.items[0].FinishedAt = &finished
	guard := NewGuardService(nil, runs, guardConfig(), nil)

	_, err := guard.Acquire(context.Background(), false)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrRunTooSoon))

	// Force bypasses the grace period.
	_, err = guard.Acquire(context.Background(), true)
	require.NoError(t, err)
}

func TestGuardRelease(t *testing.T) {
	runs := &fakeRuns{}
	guard := NewGuardService(nil, runs, guardConfig(), nil)

	run, err := guard.Acquire(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, guard.Release(context.Background(), run, models.RunStatusSucceeded, "done"))

	latest, err := runs.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, latest.Status)
	assert.Equal(t, "done", latest.LogTail)
	require.NotNil(t, latest.FinishedAt)
}
