package utils

import "time"

// Timer measures elapsed wall-clock time from a start instant. Create one
// with [NewTimer], which starts the timer immediately; read the running
// total with [Timer.Elapsed] or [Timer.ElapsedSeconds].
type Timer struct {
	startTime time.Time
}

// NewTimer creates a new Timer and immediately starts it by recording the
// current time as the start instant.
func NewTimer() *Timer {
	return &Timer{startTime: time.Now()}
}

// Elapsed returns the time elapsed since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.startTime)
}

// ElapsedSeconds returns the elapsed time as floating-point seconds, the
// unit used by the conversation log's response_time field.
func (t *Timer) ElapsedSeconds() float64 {
	return t.Elapsed().Seconds()
}
