package store

import "time"

// Job statuses retained in the audit trail.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// CompletedBound caps the recently-completed set: older records beyond it may be discarded.
const CompletedBound = 1000

// JobRecord contains the fields of a processed job saved to DB.
type JobRecord struct {
	ID          string    `json:"id" bson:"id"`
	Status      string    `json:"status" bson:"status"`
	EventType   string    `json:"eventType" bson:"eventType"`
	Wallet      string    `json:"wallet" bson:"wallet"`
	WalletType  string    `json:"walletType,omitempty" bson:"walletType,omitempty"`
	Attempts    int       `json:"attempts" bson:"attempts"`
	Error       string    `json:"error,omitempty" bson:"error,omitempty"`
	ProcessedAt time.Time `json:"processedAt" bson:"processedAt"`
}
