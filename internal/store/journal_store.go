package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailrelay/internal/model"
)

// deliveryRow mirrors the deliveries table.
type deliveryRow struct {
	ID        string    `db:"id"`
	UID       int64     `db:"uid"`
	Folder    string    `db:"folder"`
	Subject   string    `db:"subject"`
	Sender    string    `db:"sender"`
	Codes     string    `db:"codes"`
	Status    string    `db:"status"`
	Detail    string    `db:"detail"`
	CreatedAt time.Time `db:"created_at"`
}

func (r deliveryRow) entry() (model.JournalEntry, error) {
	var codes []string
	if err := json.Unmarshal([]byte(r.Codes), &codes); err != nil {
		return model.JournalEntry{}, fmt.Errorf("unmarshaling codes for %s: %w", r.ID, err)
	}
	return model.JournalEntry{
		ID:        r.ID,
		UID:       uint32(r.UID),
		Folder:    r.Folder,
		Subject:   r.Subject,
		Sender:    r.Sender,
		Codes:     codes,
		Status:    r.Status,
		Detail:    r.Detail,
		CreatedAt: r.CreatedAt,
	}, nil
}

// RecordDelivery appends a journal entry. Generates a UUID if ID is
// empty and stamps CreatedAt if it is zero.
func (s *SQLiteStore) RecordDelivery(ctx context.Context, entry model.JournalEntry) error {
	if entry.Status == "" {
		return fmt.Errorf("journal entry status must not be empty")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Codes == nil {
		entry.Codes = []string{}
	}

	codes, err := json.Marshal(entry.Codes)
	if err != nil {
		return fmt.Errorf("marshaling codes for UID %d: %w", entry.UID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO deliveries (
			id, uid, folder, subject, sender,
			codes, status, detail, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, int64(entry.UID), entry.Folder, entry.Subject, entry.Sender,
		string(codes), entry.Status, entry.Detail, entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording delivery of UID %d: %w", entry.UID, err)
	}
	return nil
}

// RecentDeliveries returns up to limit entries, newest first.
func (s *SQLiteStore) RecentDeliveries(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []deliveryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM deliveries
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent deliveries: %w", err)
	}
	return toEntries(rows)
}

// DeliveriesForUID returns every attempt recorded for one message,
// oldest first.
func (s *SQLiteStore) DeliveriesForUID(
	ctx context.Context,
	folder string,
	uid uint32,
) ([]model.JournalEntry, error) {
	var rows []deliveryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM deliveries
		WHERE folder = ? AND uid = ?
		ORDER BY created_at, rowid`, folder, int64(uid))
	if err != nil {
		return nil, fmt.Errorf("querying deliveries for UID %d: %w", uid, err)
	}
	return toEntries(rows)
}

// Stats counts delivered and failed attempts.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var counts []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	err := s.db.SelectContext(ctx, &counts,
		"SELECT status, COUNT(*) AS n FROM deliveries GROUP BY status")
	if err != nil {
		return Stats{}, fmt.Errorf("counting deliveries: %w", err)
	}

	var st Stats
	for _, c := range counts {
		if c.Status == model.JournalDelivered {
			st.Delivered += c.N
		} else {
			st.Failed += c.N
		}
	}

	var last []deliveryRow
	err = s.db.SelectContext(ctx, &last, `
		SELECT * FROM deliveries
		WHERE status = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, model.JournalDelivered)
	if err != nil {
		return Stats{}, fmt.Errorf("querying last delivery: %w", err)
	}
	if len(last) == 1 {
		at := last[0].CreatedAt
		st.LastDelivered = &at
	}

	return st, nil
}

func toEntries(rows []deliveryRow) ([]model.JournalEntry, error) {
	entries := make([]model.JournalEntry, 0, len(rows))
	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
