package ordersync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordersync/backend/internal/domain/order"
)

func closedRec(id, po string) order.Record {
	r := rec(id, po, "20240301_0900")
	r.Flags.Closed = true
	return r
}

func ids(t *testing.T, store order.Store, stage order.Stage) []string {
	t.Helper()
	recs, err := store.Find(context.Background(), stage, order.Query{})
	require.NoError(t, err)
	return externalIDs(recs)
}

func TestMigrator_MigrateClosed(t *testing.T) {
	store := newFaultyStore()
	seed(t, store, order.StageOpen, closedRec("1", "ZSH1"), rec("2", "ZSH2", "20240301_0900"), closedRec("3", "ZSH3"))
	m := NewMigrator(store, newTestEngine(store))

	res, err := m.MigrateClosed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MigrationResult{Inserted: 2, Removed: 2}, res)
	assert.Equal(t, []string{"2"}, ids(t, store, order.StageOpen))
	assert.ElementsMatch(t, []string{"1", "3"}, ids(t, store, order.StageClosed))

	closed, err := store.Find(context.Background(), order.StageClosed, order.Query{})
	require.NoError(t, err)
	for _, r := range closed {
		assert.Equal(t, order.StageClosed, r.Stage)
		assert.True(t, r.Flags.Closed)
	}

	again, err := m.MigrateClosed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestMigrator_InterruptedMoveIsRepairedByRerun(t *testing.T) {
	store := newFaultyStore()
	seed(t, store, order.StageOpen, closedRec("1", "ZSH1"))
	m := NewMigrator(store, newTestEngine(store))

	store.deleteErr = errors.New("connection reset")
	_, err := m.MigrateClosed(context.Background())
	require.ErrorIs(t, err, order.ErrStoreWriteFailure)
	assert.Equal(t, []string{"1"}, ids(t, store, order.StageOpen), "the source copy survives a failed delete")
	assert.Equal(t, []string{"1"}, ids(t, store, order.StageClosed))

	store.deleteErr = nil
	res, err := m.MigrateClosed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MigrationResult{Inserted: 1, Merged: 1, Removed: 1}, res, "the closed copy is merged, not duplicated")
	assert.Empty(t, ids(t, store, order.StageOpen))
	assert.Equal(t, []string{"1"}, ids(t, store, order.StageClosed))
}

func TestMigrator_FailedInsertLeavesSource(t *testing.T) {
	store := newFaultyStore()
	seed(t, store, order.StageOpen, closedRec("1", "ZSH1"))
	m := NewMigrator(store, newTestEngine(store))

	store.upsertErr = errors.New("disk full")
	_, err := m.MigrateClosed(context.Background())
	require.ErrorIs(t, err, order.ErrStoreWriteFailure)
	assert.Equal(t, []string{"1"}, ids(t, store, order.StageOpen))
	assert.Zero(t, store.Count(order.StageClosed))
}

func TestMigrator_NeverMovesBackward(t *testing.T) {
	store := newFaultyStore()
	m := NewMigrator(store, newTestEngine(store))

	_, err := m.move(context.Background(), []order.Record{rec("1", "ZSH1", "")}, order.StageClosed, order.StageOpen)
	assert.ErrorIs(t, err, order.ErrStageRegression)
	_, err = m.move(context.Background(), []order.Record{rec("1", "ZSH1", "")}, order.StageOpen, order.StagePending)
	assert.ErrorIs(t, err, order.ErrStageRegression)
}

func TestMigrator_PromoteAndRetire(t *testing.T) {
	store := newFaultyStore()
	seed(t, store, order.StagePending, rec("1", "ZSH1", ""), rec("2", "ZSH2", ""))
	m := NewMigrator(store, newTestEngine(store))

	pending, err := store.Find(context.Background(), order.StagePending, order.Query{})
	require.NoError(t, err)

	promoted, err := m.Promote(context.Background(), pending[:1])
	require.NoError(t, err)
	assert.Equal(t, MigrationResult{Inserted: 1, Removed: 1}, promoted)

	retired, err := m.Retire(context.Background(), pending[1:])
	require.NoError(t, err)
	assert.Equal(t, MigrationResult{Inserted: 1, Removed: 1}, retired)

	assert.Empty(t, ids(t, store, order.StagePending))
	assert.Equal(t, []string{"1"}, ids(t, store, order.StageOpen))
	assert.Equal(t, []string{"2"}, ids(t, store, order.StageClosed))
}

func TestMigrator_Sweep(t *testing.T) {
	store := newFaultyStore()
	openCopy := rec("1", "ZSH1", "20240301_0900")
	openCopy.TrackingNumbers = []string{"1Z2"}
	seed(t, store, order.StageOpen, openCopy, rec("2", "ZSH2", "20240301_0900"))
	closedCopy := closedRec("1", "ZSH1")
	closedCopy.TrackingNumbers = []string{"1Z1"}
	seed(t, store, order.StageClosed, closedCopy)
	seed(t, store, order.StagePending, rec("2", "ZSH2", ""), rec("5", "ZSH5", ""))
	m := NewMigrator(store, newTestEngine(store))

	res, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{OpenClosed: 1, PendingLater: 1, RemovedOpen: 1, RemovedPending: 1}, res)

	assert.Equal(t, []string{"2"}, ids(t, store, order.StageOpen))
	assert.Equal(t, []string{"5"}, ids(t, store, order.StagePending))

	closed, err := store.Find(context.Background(), order.StageClosed, order.Query{})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, []string{"1Z1", "1Z2"}, closed[0].TrackingNumbers)
	assert.True(t, closed[0].Flags.Closed)

	again, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestMigrator_SweepCleanStore(t *testing.T) {
	store := newFaultyStore()
	seed(t, store, order.StageOpen, rec("1", "ZSH1", ""))
	seed(t, store, order.StageClosed, closedRec("2", "ZSH2"))
	m := NewMigrator(store, newTestEngine(store))

	res, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res)
	assert.Equal(t, []string{"1"}, ids(t, store, order.StageOpen))
	assert.Equal(t, []string{"2"}, ids(t, store, order.StageClosed))
}
