package postgresadapter

import (
	"time"

	"photocontest/contexts/community-experience/photo-contest/ports"
)

// SystemClock is the default runtime clock and timer source.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func (SystemClock) AfterFunc(d time.Duration, fn func()) ports.Timer {
	return time.AfterFunc(d, fn)
}

var (
	_ ports.Clock        = SystemClock{}
	_ ports.TimerFactory = SystemClock{}
)
