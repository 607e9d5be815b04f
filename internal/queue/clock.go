package queue

import "time"

// Clock abstracts time for the engine so retry timing is deterministically
// testable without wall-clock waits. Production code uses SystemClock;
// tests inject a fake whose Now they advance by hand.
type Clock interface {
	Now() time.Time
}

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}
