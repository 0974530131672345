package rewarder

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/cheesemint/sra/lib/msg"
	"github.com/cheesemint/sra/lib/store"
	"github.com/cheesemint/sra/lib/wallet"
)

// Errors returned to client requests.
var (
	ErrBadEvent  = errors.New("unknown event type in request")
	ErrBadWallet = errors.New("invalid wallet address in request")
	ErrNoStore   = errors.New("no job store configured")
)

// Response defines the data structure returned to the client making the http request.
type Response struct {
	Body  string `json:"body"`
	Error string `json:"error,omitempty"`
}

// homeHandler just replies a welcome message to the client.
func (rw *Rewarder) homeHandler(w http.ResponseWriter, r *http.Request) {
	var res Response
	// log request
	log.Printf("httpreq from %v %s\n", r.RemoteAddr, r.RequestURI)
	// just reply a welcome message
	res.Body = "Hello, this is your search rewards adaptor!"
	// reply
	w.Header().Set("Content-Type", "application/json;charset=utf8")
	_ = json.NewEncoder(w).Encode(res)
}

// health is the payload replied by healthHandler.
type health struct {
	Queues map[string]int `json:"queues"`         // messages per queue state
	Jobs   map[string]int `json:"jobs,omitempty"` // audit records per status
}

// healthHandler replies the queue depths and the audit store job counts.
func (rw *Rewarder) healthHandler(w http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var h health

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(h)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s health:%+v err:%e\n", r.RemoteAddr, r.RequestURI, h, err)
		// reply
		w.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(w).Encode(&res)
	}()

	if h.Queues, err = rw.mb.Depths(); err != nil {
		log.Printf("Error getting queue depths:%e\n", err)

		return
	}

	if rw.db != nil {
		if h.Jobs, err = rw.db.Counts(); err != nil {
			log.Printf("Error getting job counts:%e\n", err)
		}
	}
}

// jobsHandler replies the audit records for the queried statuses. If no status is queried, both completed and
// failed records are returned.
func (rw *Rewarder) jobsHandler(w http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var jobs []store.JobRecord

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			if errors.Is(err, store.ErrBadStatus) {
				w.WriteHeader(http.StatusBadRequest)
			} else {
				w.WriteHeader(http.StatusInternalServerError)
			}
		} else {
			w.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(jobs)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s jobs:%d err:%e\n", r.RemoteAddr, r.RequestURI, len(jobs), err)
		// reply
		w.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(w).Encode(&res)
	}()

	if rw.db == nil {
		err = ErrNoStore

		return
	}

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	statuses := r.Form["status"]
	if len(statuses) == 0 {
		statuses = []string{store.StatusCompleted, store.StatusFailed}
	}

	for _, s := range statuses {
		if s != store.StatusCompleted && s != store.StatusFailed {
			err = fmt.Errorf("%w: %q", store.ErrBadStatus, s)

			return
		}
	}

	jobs, err = rw.db.GetJobs(statuses)
}

// rewardHandler enqueues a reward event for processing. The event is validated before it is published so a
// client gets an immediate error for a malformed wallet or an unroutable event type; a request accepted
// status with the assigned job identifier is replied otherwise.
func (rw *Rewarder) rewardHandler(w http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var id string

	var e msg.RewardEvent

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			w.WriteHeader(http.StatusBadRequest)
		} else {
			res.Body = id

			w.WriteHeader(http.StatusAccepted)
		}
		// log request and job id
		log.Printf("httpreq from %v %s id:%s err:%e\n", r.RemoteAddr, r.RequestURI, id, err)
		// reply
		w.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(w).Encode(&res)
	}()

	// get request
	if err = json.NewDecoder(r.Body).Decode(&e); err != nil {
		log.Printf("Error decoding reward event request %+v\n", r.Body)

		return
	}

	e.EventType = strings.ToLower(e.EventType)
	if _, ok := routes[e.EventType]; !ok {
		err = fmt.Errorf("%w: %q", ErrBadEvent, e.EventType)

		return
	}

	if _, err = wallet.Normalize(e.WalletAddress); err != nil {
		err = fmt.Errorf("%w: %s", ErrBadWallet, err)

		return
	}

	// send event to broker
	id, err = rw.mb.Enqueue(e)
}
