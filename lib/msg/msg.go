// Package msg defines the interface for the reward job queue substrate. The substrate delivers jobs at least
// once and owns all retry scheduling: the processor only reports success or failure back.
package msg

import (
	"sync"
	"time"
)

// Reward event types.
const (
	ArnsSearch  = "arns-search"
	ImageSearch = "image-search"
	AudioSearch = "audio-search"
	VideoSearch = "video-search"
)

// Queue states reported by Depths.
const (
	StateWaiting = "waiting"
	StateRetry   = "retrying"
)

// RewardEvent is the payload enqueued when an end user performs a search. Immutable once enqueued; a job is
// identified by the queue's job identifier, not by its content.
type RewardEvent struct {
	EventType     string            `json:"eventType"`
	WalletAddress string            `json:"walletAddress"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Job wraps a reward event with the queue's own bookkeeping. Attempts counts deliveries already made and is
// read by the processor for logging only, never for branching.
type Job struct {
	ID       string
	Attempts int
	Event    RewardEvent
}

// JobBroker is the interface message broker implementations provide to the rewarder service.
type JobBroker interface {
	Setup(interface{}) error
	Close() error

	// Enqueue publishes a new reward event and returns the job identifier assigned to it.
	Enqueue(e RewardEvent) (string, error)

	// GetJobs consumes jobs, pushing them to the returned channel. The Mutex pointer is provided to ensure
	// the consumed message has been fully dealt with, so the message is only acknowledged when the mutex is
	// unlocked.
	GetJobs(mut *sync.Mutex) (<-chan Job, <-chan error, error)

	// Retry schedules the job for redelivery after the given delay, with its attempt count bumped.
	Retry(j Job, delay time.Duration) error

	// Depths returns the number of queued messages per queue state.
	Depths() (map[string]int, error)
}
