package service

import (
	"context"
	"testing"
	"time"

	"wagate/internal/constants"
	"wagate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSweeper(db *fakeDB) *Sweeper {
	cfg := models.SweeperConfig{
		IntervalSec:   constants.DefaultSweepIntervalSec,
		BatchSize:     constants.DefaultSweepBatchSize,
		RetentionDays: constants.DefaultRetentionDays,
	}
	return NewSweeper(newTestWebhookService(db), cfg, testLogger())
}

func TestSweepProcessesDueRecords(t *testing.T) {
	db := newFakeDB()
	sweeper := newTestSweeper(db)

	id := storeWebhookRecord(t, db, models.EventTypeAccountAlert, `{"decision":"APPROVED"}`)
	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, db.UpdateWebhookRetryState(context.Background(), id, 1, &past, "transient"))

	sweeper.sweep(context.Background())

	record, err := db.GetWebhookEvent(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, record.Processed)
}

func TestSweepSkipsUnclaimedRecords(t *testing.T) {
	db := newFakeDB()
	sweeper := newTestSweeper(db)

	id := storeWebhookRecord(t, db, models.EventTypeAccountAlert, `{"decision":"APPROVED"}`)
	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, db.UpdateWebhookRetryState(context.Background(), id, 1, &past, "transient"))

	// A concurrent sweep already claimed the record.
	db.claimResults[id] = false

	sweeper.sweep(context.Background())

	record, err := db.GetWebhookEvent(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, record.Processed)
}

func TestSweepIgnoresFutureAndExhaustedRecords(t *testing.T) {
	db := newFakeDB()
	sweeper := newTestSweeper(db)

	future := storeWebhookRecord(t, db, models.EventTypeAccountAlert, `{}`)
	at := time.Now().UTC().Add(time.Hour)
	require.NoError(t, db.UpdateWebhookRetryState(context.Background(), future, 1, &at, "transient"))

	exhausted := storeWebhookRecord(t, db, models.EventTypeAccountAlert, `{}`)
	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.UpdateWebhookRetryState(context.Background(), exhausted, 3, &past, "max retries reached: boom"))

	sweeper.sweep(context.Background())

	for _, id := range []int64{future, exhausted} {
		record, err := db.GetWebhookEvent(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, record.Processed)
	}
}

func TestSweeperStop(t *testing.T) {
	db := newFakeDB()
	sweeper := newTestSweeper(db)

	done := make(chan struct{})
	go func() {
		sweeper.Start(context.Background())
		close(done)
	}()

	sweeper.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
