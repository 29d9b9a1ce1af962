package model

import "time"

// dateLayout is how a parsed send time is shown in a notification.
const dateLayout = "2006-01-02 15:04"

// Notification is the normalized form of one mail message, ready to be
// rendered and delivered.
type Notification struct {
	Subject string
	From    string

	// Date is the parsed send time. It is zero when the Date header was
	// missing or could not be parsed, in which case DateRaw holds the
	// header as received.
	Date    time.Time
	DateRaw string

	// Body is the selected plain-text body, already bounded.
	Body string

	// Codes are candidate one-time codes in extraction order.
	Codes []string
}

// DisplayDate returns the send time for display, falling back to the
// raw header value.
func (n Notification) DisplayDate() string {
	if !n.Date.IsZero() {
		return n.Date.Format(dateLayout)
	}
	return n.DateRaw
}

// DeliveryResult is the outcome of one delivery attempt. The chat
// identity is echoed by the endpoint and used only for diagnostics.
type DeliveryResult struct {
	OK          bool
	ChatID      int64
	ChatTitle   string
	Description string
	Err         error
}

// Reason returns a human-readable failure reason.
func (r DeliveryResult) Reason() string {
	switch {
	case r.Description != "" && r.Err != nil:
		return r.Description + ": " + r.Err.Error()
	case r.Description != "":
		return r.Description
	case r.Err != nil:
		return r.Err.Error()
	}
	return ""
}
