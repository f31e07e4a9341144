package application

import (
	"time"

	"github.com/google/uuid"
)

// Clock interface supaya gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock implementasi default, pakai time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// IDGenerator produces unique identifiers.
type IDGenerator func() string

// UUIDv7 returns time-ordered UUIDs, so ids sort in creation order.
func UUIDv7() IDGenerator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}
