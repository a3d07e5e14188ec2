package app

import "time"

// Clock abstracts time.Now so hawl-interval logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// NewRealClock returns a Clock backed by the system clock (UTC).
func NewRealClock() Clock { return realClock{} }
