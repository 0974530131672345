// Package amqp implements the job broker interface for AMQP compliant brokers (ie RabbitMQ). Reward jobs are
// published to a durable exchange and consumed from a durable queue; retries go through a companion queue
// whose messages expire back into the main queue after their backoff delay, so redelivery scheduling lives
// entirely in the broker.
package amqp

import (
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/cheesemint/sra/lib/msg"
)

// Exchange and queue names.
const (
	exchange   = "rw" // reward jobs exchange
	queueMain  = "rewards"
	queueRetry = "rewards.retry"
)

// Message header keys carrying job bookkeeping.
const (
	headerJobID    = "x-job-id"
	headerAttempts = "x-attempts"
)

// Amqp implements a connection to a broker and a channel for reuse.
type Amqp struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// New instantiates a new amqp broker.
func New(uri string) (msg.JobBroker, error) {
	r := Amqp{}

	var err error

	if r.conn, err = amqp.Dial(uri); err != nil {
		return &r, err
	}

	r.ch = nil

	log.Printf("Connected to %s", uri)

	return &r, err
}

// Setup obtains an amqp channel and declares the exchange and queues:
//
// - "rewards": the main queue reward jobs are consumed from
//
// - "rewards.retry": holds failed jobs until their backoff delay expires, then dead-letters them back into
// the main queue
func (r *Amqp) Setup(x interface{}) error {
	// obtain a one-use channel
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()

	if err = channel.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return err
	}

	if _, err = channel.QueueDeclare(queueMain, true, false, false, false, nil); err != nil {
		return err
	}

	if err = channel.QueueBind(queueMain, queueMain, exchange, false, nil); err != nil {
		return err
	}

	_, err = channel.QueueDeclare(queueRetry, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    exchange,
		"x-dead-letter-routing-key": queueMain,
	})

	return err
}

// Close terminates gracefully the connection to the AMQP message broker.
func (r *Amqp) Close() error {
	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			log.Printf("Error closing amqp.Channel:%e", err)
		}

		r.ch = nil

		log.Printf("amqp.Channel closed!")
	}

	return r.conn.Close()
}

// Enqueue publishes a new reward event with a fresh job id and a zero attempt count.
func (r *Amqp) Enqueue(e msg.RewardEvent) (string, error) {
	id := uuid.NewString()

	return id, r.publish(queueMain, "", msg.Job{ID: id, Event: e})
}

// Retry republishes the job to the retry queue with its attempt count bumped. The per-message TTL makes the
// broker dead-letter it back into the main queue once the delay expires.
func (r *Amqp) Retry(j msg.Job, delay time.Duration) error {
	j.Attempts++

	return r.publish(queueRetry, strconv.FormatInt(delay.Milliseconds(), 10), j)
}

// publish sends a job to the given queue, with an optional expiration in milliseconds.
func (r *Amqp) publish(queue, expiration string, j msg.Job) (err error) {
	// marshal to JSON
	var jsonDoc []byte
	if jsonDoc, err = json.Marshal(j.Event); err != nil {
		return
	}
	// obtain channel if not present
	if r.ch == nil {
		if r.ch, err = r.conn.Channel(); err != nil {
			return
		}
	}
	// build body
	pub := amqp.Publishing{
		Headers:      amqp.Table{headerJobID: j.ID, headerAttempts: int32(j.Attempts)},
		Body:         jsonDoc,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Expiration:   expiration,
	}
	// publish; the retry queue is addressed directly via the default exchange
	if queue == queueMain {
		err = r.ch.Publish(exchange, queueMain, false, false, pub)
	} else {
		err = r.ch.Publish("", queue, false, false, pub)
	}

	if err != nil {
		log.Printf("Error publishing job %s to %s: %e", j.ID, queue, err)
	}

	return
}

// GetJobs consumes reward jobs pushing them to the returned channel. The Mutex pointer is provided to ensure
// the consumed message has been fully dealt with by the management function, so the message consumed is only
// acknowledged when the mutex is unlocked.
func (r *Amqp) GetJobs(mut *sync.Mutex) (<-chan msg.Job, <-chan error, error) {
	var err error
	if r.ch == nil {
		if r.ch, err = r.conn.Channel(); err != nil {
			return nil, nil, err
		}
	}

	// create channel for receiving jobs
	msgs, errCons := r.ch.Consume(queueMain, "rewarder", false, false, false, false, nil)
	if errCons != nil {
		return nil, nil, errCons
	}

	// define channels to return
	jobs := make(chan msg.Job)
	errors := make(chan error)

	// start routine to consume messages from broker
	go func() {
		for m := range msgs {
			var e msg.RewardEvent

			err := json.Unmarshal(m.Body, &e)
			if err != nil {
				errors <- err

				m.Ack(false)

				continue
			}

			jobs <- msg.Job{ID: headerString(m.Headers, headerJobID), Attempts: headerInt(m.Headers, headerAttempts), Event: e}

			mut.Lock() // wait for the rewarder to finish processing the job
			m.Ack(false)
		}
	}()

	return jobs, errors, nil
}

// Depths returns the number of messages waiting in the main queue and parked in the retry queue.
func (r *Amqp) Depths() (map[string]int, error) {
	// inspection uses a one-use channel: a passive declare on a missing queue closes the channel
	channel, err := r.conn.Channel()
	if err != nil {
		return nil, err
	}
	defer channel.Close()

	main, err := channel.QueueInspect(queueMain)
	if err != nil {
		return nil, err
	}

	retry, err := channel.QueueInspect(queueRetry)
	if err != nil {
		return nil, err
	}

	return map[string]int{
		msg.StateWaiting: main.Messages,
		msg.StateRetry:   retry.Messages,
	}, nil
}

// headerString reads a string header, tolerating its absence.
func headerString(t amqp.Table, key string) string {
	if v, ok := t[key].(string); ok {
		return v
	}

	return ""
}

// headerInt reads an integer header, tolerating its absence and the broker's integer width of choice.
func headerInt(t amqp.Table, key string) int {
	switch v := t[key].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}

	return 0
}
