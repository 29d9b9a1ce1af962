package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailrelay/internal/model"
	"github.com/nhle/mailrelay/internal/store"
	"github.com/nhle/mailrelay/tests/testutil"
)

func TestRecordAndListDeliveries(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordDelivery(ctx, model.JournalEntry{
		UID: 11, Folder: "INBOX", Subject: "first", Sender: "a@example.com",
		Codes: []string{"483920"}, Status: model.JournalDelivered,
		CreatedAt: base,
	}))
	require.NoError(t, s.RecordDelivery(ctx, model.JournalEntry{
		UID: 12, Folder: "INBOX", Subject: "second",
		Status: model.JournalFailed, Detail: "Bad Request: chat not found",
		CreatedAt: base.Add(time.Minute),
	}))

	recent, err := s.RecentDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	assert.Equal(t, uint32(12), recent[0].UID)
	assert.Equal(t, model.JournalFailed, recent[0].Status)
	assert.Equal(t, "Bad Request: chat not found", recent[0].Detail)
	assert.Empty(t, recent[0].Codes)

	assert.Equal(t, uint32(11), recent[1].UID)
	assert.Equal(t, []string{"483920"}, recent[1].Codes)
	assert.NotEmpty(t, recent[1].ID)
	assert.True(t, recent[1].CreatedAt.Equal(base))
}

func TestRecentDeliveriesLimit(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	for uid := uint32(1); uid <= 5; uid++ {
		require.NoError(t, s.RecordDelivery(ctx, model.JournalEntry{
			UID: uid, Folder: "INBOX", Status: model.JournalDelivered,
		}))
	}

	recent, err := s.RecentDeliveries(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, uint32(5), recent[0].UID)
}

func TestDeliveriesForUID(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordDelivery(ctx, model.JournalEntry{
		UID: 7, Folder: "INBOX", Status: model.JournalFailed,
	}))
	require.NoError(t, s.RecordDelivery(ctx, model.JournalEntry{
		UID: 7, Folder: "Archive", Status: model.JournalDelivered,
	}))
	require.NoError(t, s.RecordDelivery(ctx, model.JournalEntry{
		UID: 7, Folder: "INBOX", Status: model.JournalDelivered,
	}))

	attempts, err := s.DeliveriesForUID(ctx, "INBOX", 7)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, model.JournalFailed, attempts[0].Status)
	assert.Equal(t, model.JournalDelivered, attempts[1].Status)
}

func TestStats(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Delivered)
	assert.Nil(t, st.LastDelivered)

	at := time.Date(2026, 5, 2, 8, 30, 0, 0, time.UTC)
	require.NoError(t, s.RecordDelivery(ctx, model.JournalEntry{
		UID: 1, Folder: "INBOX", Status: model.JournalDelivered, CreatedAt: at,
	}))
	require.NoError(t, s.RecordDelivery(ctx, model.JournalEntry{
		UID: 2, Folder: "INBOX", Status: model.JournalFetchFailed,
	}))
	require.NoError(t, s.RecordDelivery(ctx, model.JournalEntry{
		UID: 3, Folder: "INBOX", Status: model.JournalFailed,
	}))

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Delivered)
	assert.Equal(t, 2, st.Failed)
	require.NotNil(t, st.LastDelivered)
	assert.True(t, st.LastDelivered.Equal(at))
}

func TestRecordDeliveryRequiresStatus(t *testing.T) {
	s := testutil.NewTestStore(t)

	err := s.RecordDelivery(context.Background(), model.JournalEntry{UID: 1})
	assert.Error(t, err)
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordDelivery(ctx, model.JournalEntry{
		UID: 9, Folder: "INBOX", Status: model.JournalDelivered,
	}))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	recent, err := s.RecentDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, uint32(9), recent[0].UID)
}
