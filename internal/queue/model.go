package queue

import "time"

// Item is the work ticket for one queued swing. It exists only while work
// remains to be attempted: completion or retry exhaustion deletes it.
type Item struct {
	ID        string
	SwingID   string
	Attempts  int
	LastError string
	NotBefore *time.Time
	CreatedAt time.Time
}
