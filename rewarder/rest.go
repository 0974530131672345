package rewarder

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const timeout = 15

// Init sets up and starts the http server to service the RESTful API for a rewarder service.
func (rw *Rewarder) Init(endpoint, port string) string {
	var err error

	// API definition
	r := mux.NewRouter()
	r.HandleFunc("/", rw.homeHandler)
	r.HandleFunc("/health", rw.healthHandler).Methods("GET")   // queue depths and job counts
	r.HandleFunc("/jobs", rw.jobsHandler).Methods("GET")       // get processed job records
	r.HandleFunc("/rewards", rw.rewardHandler).Methods("POST") // enqueue a reward event
	http.Handle("/", r)

	// setup shutdown channel
	rw.sc = make(chan struct{})

	// start http server
	if port != "" {
		rw.s = &http.Server{
			Handler: r,
			Addr:    endpoint + ":" + port,
			// Good practice: enforce timeouts for servers you create!
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			err = rw.s.ListenAndServe()
		}()

		log.Printf("Listening to API http requests on %s:%s", endpoint, port)
	}
	// wait for server to be shutdown
	<-rw.sc

	return fmt.Sprintf("shutdown http server:%e", err)
}
