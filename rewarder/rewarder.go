// Package rewarder implements the reward event processor microservice.
//
// The rewarder consumes reward jobs from the message broker, validates the originating wallet address and
// grants the corresponding achievements through the achievement ledger service. The queue substrate is the
// sole authority on retry scheduling: the rewarder reports failure and the job comes back after its backoff
// delay until the attempt budget is exhausted, at which point the job is retained in the failed set of the
// audit store. Completed jobs are retained in a bounded recent set for auditability.
package rewarder

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/cheesemint/sra/lib/msg"
	"github.com/cheesemint/sra/lib/store"
	"github.com/cheesemint/sra/lib/store/db"
)

// Rewarder contains the data necessary to deliver the service.
type Rewarder struct {
	dbtype      string
	db          store.DB      // job audit store
	mb          msg.JobBroker // queue substrate
	aw          Awarder       // achievement ledger service
	maxAttempts int
	s           *http.Server  // http server
	sc          chan struct{} // http server channel used for graceful shutdowns
}

// New returns a pointer to a new Rewarder service.
func New(dbtype string, dbConn store.DB, mb msg.JobBroker, aw Awarder, maxAttempts int) *Rewarder {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &Rewarder{
		dbtype:      dbtype,
		db:          dbConn,
		mb:          mb,
		aw:          aw,
		maxAttempts: maxAttempts,
	}
}

// Stop shuts down the http server implementing the RESTful API and closes gracefully the connections to
// message broker and database.
func (rw *Rewarder) Stop() {
	var err error
	// shutdown http server
	if rw.s != nil {
		if err = rw.s.Shutdown(context.Background()); err != nil {
			log.Printf("Error in http server shutdown:%e", err)
		}
	}

	if rw.sc != nil {
		close(rw.sc) // close server channel to indicate shutdown has finished
	}
	// close message broker
	if err = rw.mb.Close(); err != nil {
		log.Printf("Error closing message broker:%e", err)
	}
	// close database
	if rw.db != nil {
		err = db.Close(rw.dbtype, rw.db)
		log.Printf("Disconnecting %v database, err:%e\n", rw.dbtype, err)
	}
}

// ManageJobs starts a go routine to consume reward jobs from the broker queue. Each job is processed to
// completion before the next is taken from the channel; the broker may still run several consumers in
// parallel, which is why the achievement service behind Process must be safe for concurrent use.
func (rw *Rewarder) ManageJobs() error {
	var mut *sync.Mutex = new(sync.Mutex)

	mut.Lock()

	jobCh, errCh, err := rw.mb.GetJobs(mut)
	if err != nil {
		return err
	}

	// launch job channel reader
	go func() {
		log.Print("[rewarder] Start listening to reward job channel")

		for {
			select {
			case j, ok := (<-jobCh):
				if !ok {
					log.Print("[rewarder] Stop listening to reward job channel")

					return
				}

				rw.manageJob(j)

				mut.Unlock() // ack the delivery
			case e, ok := (<-errCh):
				if !ok {
					log.Print("[rewarder] Stop listening to err channel")

					return
				}

				log.Printf("[rewarder] Received error %+v", e)
			}
		}
	}()

	return nil
}

// manageJob runs one job through Process and reports the outcome back to the queue substrate: success is
// recorded in the completed set, failure is rescheduled until the attempt budget runs out and then recorded
// in the failed set. The rewarder never classifies failures itself.
func (rw *Rewarder) manageJob(j msg.Job) {
	res, err := rw.Process(j)

	deliveries := j.Attempts + 1 // this delivery included

	if err == nil {
		jobsProcessed.WithLabelValues(store.StatusCompleted).Inc()
		rw.record(store.JobRecord{
			ID:          j.ID,
			Status:      store.StatusCompleted,
			EventType:   res.EventType,
			Wallet:      res.Wallet,
			WalletType:  string(res.WalletType),
			Attempts:    deliveries,
			ProcessedAt: res.ProcessedAt,
		})

		return
	}

	if deliveries >= rw.maxAttempts {
		log.Printf("[rewarder] Job %s failed after %d/%d attempts: %v", j.ID, deliveries, rw.maxAttempts, err)
		jobsProcessed.WithLabelValues(store.StatusFailed).Inc()
		rw.record(store.JobRecord{
			ID:          j.ID,
			Status:      store.StatusFailed,
			EventType:   j.Event.EventType,
			Wallet:      j.Event.WalletAddress,
			Attempts:    deliveries,
			Error:       err.Error(),
			ProcessedAt: time.Now(),
		})

		return
	}

	delay := retryDelay(j.Attempts)

	log.Printf("[rewarder] Job %s failed on attempt %d/%d, retrying in %s: %v", j.ID, deliveries, rw.maxAttempts, delay, err)
	jobsProcessed.WithLabelValues("retried").Inc()

	if errRetry := rw.mb.Retry(j, delay); errRetry != nil {
		log.Printf("[rewarder] Error rescheduling job %s: %e", j.ID, errRetry)
	}
}

// record saves a job record to the audit store when one is configured.
func (rw *Rewarder) record(rec store.JobRecord) {
	if rw.db == nil {
		return
	}

	if err := rw.db.SaveJob(rec); err != nil {
		log.Printf("[rewarder] Error saving %s job %s to DB: %e", rec.Status, rec.ID, err)
	}
}
