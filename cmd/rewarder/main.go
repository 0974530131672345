// Package main: rewarder service.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cheesemint/sra/achievement"
	"github.com/cheesemint/sra/lib/config"
	"github.com/cheesemint/sra/lib/ledger"
	"github.com/cheesemint/sra/lib/msg"
	"github.com/cheesemint/sra/lib/msg/amqp"
	"github.com/cheesemint/sra/lib/store"
	"github.com/cheesemint/sra/lib/store/db"
	"github.com/cheesemint/sra/rewarder"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json file")
	monitor := flag.Bool("m", false, "flag to monitor the server with Prometheus at http://localhost:9100")
	flag.Parse()

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	if err = conf.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Configuration:%+v", conf)

	// connect to database
	var dbConn store.DB

	if conf.DBConn != "" {
		if dbConn, err = db.New(conf.DBType, conf.DBConn); err != nil {
			panic(err)
		}

		log.Printf("Connecting to database:%+v\n", conf.DBConn)
	}

	// load Prometheus monitor
	if *monitor {
		go func() {
			log.Println("Serving metrics API")

			h := http.NewServeMux()

			h.Handle("/metrics", promhttp.Handler())
			http.ListenAndServe(":9100", h)
		}()
	}

	// load message broker
	var mb msg.JobBroker

	switch conf.MbType {
	case "amqp":
		if mb, err = amqp.New(conf.MbConn); err != nil {
			time.Sleep(10 * time.Second) // wait 10s for AMQP to be ready and try to reconnect

			if mb, err = amqp.New(conf.MbConn); err != nil {
				panic(err)
			}
		}

		if err = mb.Setup(nil); err != nil {
			panic(err)
		}
	default:
		log.Fatalf("Unknown message broker type: %s\n", conf.MbType)
	}

	// load the ledger signing key
	signer, err := ledger.LoadSigner(conf.KeyFile)
	if err != nil {
		log.Fatalf("Error loading wallet key file %s: %v", conf.KeyFile, err)
	}

	log.Printf("Signing awards as %s", signer.Address())

	// create the achievement service and verify the ledger grants this wallet the awarder role
	aw := achievement.New(ledger.New(conf.Gateway), signer, conf.ProcessID, time.Duration(conf.CacheTTLMs)*time.Millisecond)
	if err = aw.Start(); err != nil {
		log.Fatalf("Error starting achievement service: %v", err)
	}

	// create rewarder service
	rw := rewarder.New(conf.DBType, dbConn, mb, aw, conf.MaxAttempts)

	// capture CTRL+C or docker's SIGTERM for gracious exit
	finish := make(chan int)

	go func() {
		sigchan := make(chan os.Signal, 10)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Println("Program killed !")
		// do last actions and wait for all write operations to end
		rw.Stop()
		close(finish)
	}()

	// manage reward jobs
	if err := rw.ManageJobs(); err != nil {
		log.Printf("Error setting up broker readers for jobs:%e", err)
	}

	// init RESTful API, wait for its return and log response
	log.Printf("Rewarder: %s\n", rw.Init(conf.RestfulEndpoint, conf.Port))

	<-finish
}
