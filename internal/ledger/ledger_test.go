package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/unictl/internal/db"
	"github.com/dokzlo13/unictl/internal/reconcile"
)

func openLedger(t *testing.T, runID string) (*Ledger, *db.DB) {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return New(d.DB, runID), d
}

func outcome(kind reconcile.Kind, id string, state reconcile.State, changed bool, err error) reconcile.Outcome {
	action := reconcile.ActionNone
	if changed || err != nil {
		action = reconcile.ActionCreate
	}
	return reconcile.Outcome{
		Key:    reconcile.ResourceKey{Kind: kind, SymmID: "000197900123", ID: id},
		Result: reconcile.Result{Kind: kind, Name: id, State: state, Changed: changed},
		Action: action,
		Err:    err,
	}
}

func TestRecord_EventTypes(t *testing.T) {
	l, _ := openLedger(t, "run-1")
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return at }

	l.Record(ctx, outcome(reconcile.KindHost, "HOST01", reconcile.StatePresent, true, nil))
	l.Record(ctx, outcome(reconcile.KindStorageGroup, "TEST_SG", reconcile.StateAbsent, false, nil))
	l.Record(ctx, outcome(reconcile.KindHost, "HOST02", reconcile.StatePresent, false, errors.New("status 500: boom")))

	// Same timestamp: newest insert first
	entries, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, EventFailed, entries[0].EventType)
	assert.Equal(t, "status 500: boom", entries[0].Error)

	assert.Equal(t, EventUnchanged, entries[1].EventType)
	assert.Equal(t, "none", entries[1].Action)
	assert.Equal(t, reconcile.StateAbsent, entries[1].DesiredState)
	assert.JSONEq(t, `{"name":"TEST_SG","state":"absent","changed":false}`, string(entries[1].Result))

	assert.Equal(t, EventChanged, entries[2].EventType)
	assert.Equal(t, "create", entries[2].Action)
	assert.Equal(t, reconcile.KindHost, entries[2].Kind)
	assert.Equal(t, "run-1", entries[2].RunID)
	assert.JSONEq(t, `{"hostname":"HOST01","state":"present","changed":true}`, string(entries[2].Result))
}

func TestRecent_NewestFirstAndLimited(t *testing.T) {
	l, _ := openLedger(t, "run-1")
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"A", "B", "C"} {
		l.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		require.NoError(t, l.Append(ctx, outcome(reconcile.KindHost, id, reconcile.StatePresent, true, nil)))
	}

	entries, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "C", entries[0].ResourceID)
	assert.Equal(t, "B", entries[1].ResourceID)
	assert.True(t, base.Add(2*time.Minute).Equal(entries[0].Timestamp))
}

func TestDeleteOlderThan(t *testing.T) {
	l, _ := openLedger(t, "run-1")
	ctx := context.Background()

	now := time.Now()
	l.now = func() time.Time { return now.Add(-40 * 24 * time.Hour) }
	require.NoError(t, l.Append(ctx, outcome(reconcile.KindHost, "OLD", reconcile.StatePresent, true, nil)))
	l.now = func() time.Time { return now }
	require.NoError(t, l.Append(ctx, outcome(reconcile.KindHost, "NEW", reconcile.StatePresent, true, nil)))

	removed, err := l.DeleteOlderThan(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	entries, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "NEW", entries[0].ResourceID)
}

func TestRecord_SeparatesRuns(t *testing.T) {
	first, d := openLedger(t, "run-1")
	second := New(d.DB, "run-2")
	ctx := context.Background()

	first.Record(ctx, outcome(reconcile.KindHost, "HOST01", reconcile.StatePresent, true, nil))
	second.Record(ctx, outcome(reconcile.KindHost, "HOST01", reconcile.StatePresent, false, nil))

	entries, err := second.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byRun := map[string]EventType{}
	for _, e := range entries {
		byRun[e.RunID] = e.EventType
	}
	assert.Equal(t, EventChanged, byRun["run-1"])
	assert.Equal(t, EventUnchanged, byRun["run-2"])
}
