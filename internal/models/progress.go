package models

import "time"

// TopicProgress is a per-topic practice rollup. It is derived from attempt
// history elsewhere in the application but participates in sync like any
// other table.
type TopicProgress struct {
	ID              string
	Topic           string
	Language        string
	TotalReviews    int64
	CorrectCount    int64
	IncorrectCount  int64
	CurrentStreak   int64
	LastPracticedAt *time.Time

	SyncEnvelope
}
