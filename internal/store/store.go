package store

import (
	"context"
	"time"

	"github.com/nhle/mailrelay/internal/model"
)

// Stats summarizes the delivery journal.
type Stats struct {
	Delivered     int
	Failed        int
	LastDelivered *time.Time
}

// Store defines the persistence interface for the delivery journal.
type Store interface {
	RecordDelivery(ctx context.Context, entry model.JournalEntry) error
	RecentDeliveries(ctx context.Context, limit int) ([]model.JournalEntry, error)
	DeliveriesForUID(ctx context.Context, folder string, uid uint32) ([]model.JournalEntry, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}
