// Package mongo implements the interface for MongoDB. Completed jobs live in a capped collection so the
// recently-completed set stays bounded without any pruning logic of our own.
package mongo

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cheesemint/sra/lib/store"
	"github.com/cheesemint/sra/lib/util"
)

const (
	database     = "sra"
	cappedSizeMB = 4
)

// Mongo implements a connection to a MongoDB database.
type Mongo struct {
	c *mgo.Client
}

// New returns a Mongo client connection to the specified MongoDB database uri. The capped collection for
// completed jobs is declared here; re-declaring an existing collection is not an error we care about.
func New(uri string) (*Mongo, error) {
	// get a client
	c, err := mgo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB in %s: %w", uri, err)
	}
	// connect client
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd // 5 seconds timeout
	defer cancel()

	err = c.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	err = c.Database(database).CreateCollection(context.Background(), store.StatusCompleted,
		options.CreateCollection().
			SetCapped(true).
			SetSizeInBytes(cappedSizeMB<<20).
			SetMaxDocuments(store.CompletedBound))
	if err != nil {
		log.Printf("Mongo: completed collection already declared? err:%e", err)
	}

	return &Mongo{c: c}, nil
}

// CloseMongo will close a database connection. Must be called at termination time.
func (m *Mongo) CloseMongo() error {
	return m.c.Disconnect(context.Background())
}

// SaveJob inserts the record in the collection matching its status.
func (m *Mongo) SaveJob(j store.JobRecord) error {
	if j.Status != store.StatusCompleted && j.Status != store.StatusFailed {
		return fmt.Errorf("%w: %q", store.ErrBadStatus, j.Status)
	}

	_, err := m.c.Database(database).Collection(j.Status).InsertOne(context.Background(), j)
	if err != nil {
		return fmt.Errorf("could not insert job record in db: %w", err)
	}

	return nil
}

// GetJobs returns the retained records for the statuses indicated, or for all statuses when none are given.
func (m *Mongo) GetJobs(statuses []string) ([]store.JobRecord, error) {
	recs := []store.JobRecord{}

	for _, status := range []string{store.StatusCompleted, store.StatusFailed} {
		if len(statuses) != 0 && !util.In(statuses, status) {
			continue
		}

		docs, err := m.c.Database(database).Collection(status).Find(context.Background(), bson.M{})
		if err != nil {
			return nil, fmt.Errorf("error reading %s jobs: %w", status, err)
		}

		for docs.Next(context.Background()) {
			var j store.JobRecord
			if err = bson.Unmarshal(docs.Current, &j); err == nil {
				recs = append(recs, j)
			}
		}
	}

	return recs, nil
}

// Counts returns the number of retained records per status.
func (m *Mongo) Counts() (map[string]int, error) {
	counts := map[string]int{}

	for _, status := range []string{store.StatusCompleted, store.StatusFailed} {
		n, err := m.c.Database(database).Collection(status).CountDocuments(context.Background(), bson.M{})
		if err != nil {
			return nil, fmt.Errorf("error counting %s jobs: %w", status, err)
		}

		counts[status] = int(n)
	}

	return counts, nil
}
