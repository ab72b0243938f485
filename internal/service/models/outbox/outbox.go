package outbox

import "time"

// ParkedEvent is an order event the audit publisher could not hand to RabbitMQ.
// The outbox worker republishes it until it is delivered or runs out of attempts.
type ParkedEvent struct {
	ID            int64
	EventID       string
	EventType     string
	Queue         string
	Payload       []byte
	Attempts      int
	MaxAttempts   int
	LastError     string
	ParkedAt      time.Time
	NextAttemptAt time.Time
}

// Exhausted reports whether the worker has given up on the event.
func (e ParkedEvent) Exhausted() bool {
	return e.Attempts >= e.MaxAttempts
}
