package domain

import "time"

// Job state constants
const (
	JobStateWaiting   = "waiting"
	JobStateActive    = "active"
	JobStateCompleted = "completed"
	JobStateFailed    = "failed"
	JobStateStalled   = "stalled"
)

// Queue names
const (
	QueueTicket       = "ticket"
	QueueNotification = "notification"
	QueueWebhook      = "webhook"
	QueueSLA          = "sla"
	QueueEmail        = "email"
)

// Default retry policy applied when a producer does not override it
const (
	DefaultMaxAttempts  = 3
	DefaultBackoffDelay = 2000 * time.Millisecond

	// Retention caps per queue
	DefaultKeepCompleted = 100
	DefaultKeepFailed    = 500
)

// AllQueues returns every queue name known to the system
func AllQueues() []string {
	return []string{QueueTicket, QueueNotification, QueueWebhook, QueueSLA, QueueEmail}
}

// IsKnownQueue reports whether name is one of AllQueues
func IsKnownQueue(name string) bool {
	for _, q := range AllQueues() {
		if q == name {
			return true
		}
	}
	return false
}

// IsKnownJobState reports whether state is a valid job state
func IsKnownJobState(state string) bool {
	switch state {
	case JobStateWaiting, JobStateActive, JobStateCompleted, JobStateFailed, JobStateStalled:
		return true
	}
	return false
}
