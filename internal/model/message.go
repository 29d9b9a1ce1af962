package model

import "time"

// MailMessage is one message as fetched from the mailbox.
type MailMessage struct {
	// UID is the mailbox-assigned identifier. It grows monotonically
	// within a folder but is not contiguous.
	UID    uint32
	Folder string
	Raw    []byte
}

// MailboxStatus summarizes the selected folder.
type MailboxStatus struct {
	Folder string
	Total  int
	Unseen int
}

// Journal entry statuses.
const (
	JournalDelivered   = "delivered"
	JournalFailed      = "failed"
	JournalFetchFailed = "fetch_failed"
)

// JournalEntry records one forwarding attempt.
type JournalEntry struct {
	ID        string    `json:"id"`
	UID       uint32    `json:"uid"`
	Folder    string    `json:"folder"`
	Subject   string    `json:"subject"`
	Sender    string    `json:"sender"`
	Codes     []string  `json:"codes"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
