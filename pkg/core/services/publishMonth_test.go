package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
)

func TestPublishMonth_StampsAndNotifies(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	store := newFakeStore()
	seedSweepSlots(store)
	store.volunteers["vol-1"] = model.Volunteer{ID: "vol-1", Name: "Alice", Email: "alice@example.com", IsActive: true}
	store.volunteers["vol-2"] = model.Volunteer{ID: "vol-2", Name: "Bob", Email: "bob@example.com", IsActive: true}
	store.putShift(assignedShift("shift-1", "2026-09-05", "ts-morning", "vol-1", nil))
	store.putShift(assignedShift("shift-2", "2026-09-19", "ts-evening", "vol-1", nil))
	store.putShift(assignedShift("shift-3", "2026-09-12", "ts-morning", "vol-2", nil))
	// Different month, must not be touched
	store.putShift(assignedShift("shift-oct", "2026-10-03", "ts-morning", "vol-1", nil))

	notifier := &mockNotifier{}
	result, err := PublishMonth(context.Background(), store, notifier, zap.NewNop(), 2026, time.September, now)

	require.NoError(t, err)
	assert.Equal(t, 3, result.Shifts)
	assert.Equal(t, 2, result.Sent)
	assert.Empty(t, result.Failed)

	for _, id := range []string{"shift-1", "shift-2", "shift-3"} {
		published := store.shifts[id].MonthPublishedAt
		require.NotNil(t, published, id)
		assert.Equal(t, now, *published)
	}
	assert.Nil(t, store.shifts["shift-oct"].MonthPublishedAt)

	assert.ElementsMatch(t, []string{"alice@example.com", "bob@example.com"}, notifier.monthly)
}

func TestPublishMonth_SummariesSortedByDate(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	store := newFakeStore()
	seedSweepSlots(store)
	store.volunteers["vol-1"] = model.Volunteer{ID: "vol-1", Name: "Alice", Email: "alice@example.com", IsActive: true}
	store.putShift(assignedShift("shift-late", "2026-09-19", "ts-evening", "vol-1", nil))
	store.putShift(assignedShift("shift-early", "2026-09-05", "ts-morning", "vol-1", nil))

	notifier := &mockNotifier{}
	_, err := PublishMonth(context.Background(), store, notifier, zap.NewNop(), 2026, time.September, now)

	require.NoError(t, err)
	require.Len(t, notifier.lastSummaries, 2)
	assert.Equal(t, "shift-early", notifier.lastSummaries[0].Shift.ID)
	assert.Equal(t, "shift-late", notifier.lastSummaries[1].Shift.ID)
}

func TestPublishMonth_EmptyMonth(t *testing.T) {
	store := newFakeStore()
	seedSweepSlots(store)

	notifier := &mockNotifier{}
	result, err := PublishMonth(context.Background(), store, notifier, zap.NewNop(), 2026, time.September, time.Now())

	require.NoError(t, err)
	assert.Equal(t, 0, result.Shifts)
	assert.Empty(t, notifier.monthly)
}

func TestPublishMonth_EmailFailureDoesNotBlockPublication(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	store := newFakeStore()
	seedSweepSlots(store)
	store.volunteers["vol-1"] = model.Volunteer{ID: "vol-1", Name: "Alice", Email: "alice@example.com", IsActive: true}
	store.putShift(assignedShift("shift-1", "2026-09-05", "ts-morning", "vol-1", nil))

	notifier := &mockNotifier{failFor: map[string]error{"alice@example.com": assert.AnError}}
	result, err := PublishMonth(context.Background(), store, notifier, zap.NewNop(), 2026, time.September, now)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Sent)
	require.Len(t, result.Failed, 1)

	// The publication stamp is the authoritative change and it stands
	require.NotNil(t, store.shifts["shift-1"].MonthPublishedAt)
}
