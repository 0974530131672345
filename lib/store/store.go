// Package store defines the interface for database implementations holding the job audit trail: completed
// jobs are retained in a bounded recent set, jobs that exhausted their attempts are retained for inspection.
package store

import (
	"errors"
)

// DB defines required methods for the rewarder's job audit trail.
type DB interface {
	SaveJob(JobRecord) error
	GetJobs(statuses []string) ([]JobRecord, error)
	Counts() (map[string]int, error)
}

// Errors returned
var (
	ErrDataNotFound = errors.New("data was not found in store")
	ErrBadStatus    = errors.New("unknown job status")
)
