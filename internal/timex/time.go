// Package timex holds small time helpers shared by the repositories and the
// wire codec: entity timestamps live as unix seconds in SQLite and on the
// wire, and as time.Time in the models.
package timex

import "time"

// Unix returns t as unix seconds.
func Unix(t time.Time) int64 {
	return t.UTC().Unix()
}

// UnixPtr returns t as unix seconds, or nil when t is nil.
func UnixPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	s := t.UTC().Unix()
	return &s
}

// FromUnix converts unix seconds to a UTC time.Time.
func FromUnix(s int64) time.Time {
	return time.Unix(s, 0).UTC()
}

// FromUnixPtr converts unix seconds to a UTC time, or nil when s is nil.
func FromUnixPtr(s *int64) *time.Time {
	if s == nil {
		return nil
	}
	t := time.Unix(*s, 0).UTC()
	return &t
}
