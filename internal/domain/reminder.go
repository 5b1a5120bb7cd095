package domain

import "time"

// Reminder is a deferred message waiting for its due time.
//
// Destination holds the serialized destination reference exactly as the
// destination codec produced it; the store never looks inside it.
type Reminder struct {
	ID          int64     `json:"id"`
	DueAt       time.Time `json:"due_at"`
	Text        string    `json:"text"`
	Destination []byte    `json:"-"`
	Sent        bool      `json:"sent"`
}

// IsDue reports whether the reminder would be selected by a scan at now.
func (r *Reminder) IsDue(now time.Time) bool {
	return !r.Sent && !r.DueAt.After(now)
}

// Stats is a point-in-time count of the reminders table.
type Stats struct {
	Pending int `json:"pending"`
	Due     int `json:"due"`
	Sent    int `json:"sent"`
}
