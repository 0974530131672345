package rewarder

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cheesemint/sra/lib/msg"
	"github.com/cheesemint/sra/lib/wallet"
)

// routes maps each reward event type to the achievements it grants, in award order. Keeping the routing as a
// table removes any chance of drift between dispatch logic and the achievement catalog.
var routes = map[string][]string{
	msg.ArnsSearch:  {"generic-searcher", "arns-searcher"},
	msg.ImageSearch: {"generic-searcher", "image-searcher"},
	msg.AudioSearch: {"generic-searcher", "audio-searcher"},
	msg.VideoSearch: {"generic-searcher", "video-searcher"},
}

// ErrUnknownEvent is returned for a job whose event type has no routing entry.
var ErrUnknownEvent = errors.New("rewarder: unknown event type")

// Awarder grants a named achievement to a wallet address. It is implemented by achievement.Service.
type Awarder interface {
	Award(name, wallet string) error
}

// Result is the structured outcome of a successfully processed job.
type Result struct {
	Success     bool              `json:"success"`
	EventType   string            `json:"eventType"`
	Wallet      string            `json:"wallet"`
	WalletType  wallet.ChainType  `json:"walletType"`
	ProcessedAt time.Time         `json:"processedAt"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Process handles one dequeued reward job: it validates and normalizes the wallet address, resolves the event
// type against the routing table and awards each achievement in order. Awards are strictly sequential within
// a job so the ledger cache race is not compounded within a single event. Any error is returned to the
// consumer loop, which defers the retry decision entirely to the queue substrate.
func (rw *Rewarder) Process(j msg.Job) (*Result, error) {
	w, err := wallet.Normalize(j.Event.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("rewarder: job %s wallet validation failed: %w", j.ID, err)
	}

	names, ok := routes[j.Event.EventType]
	if !ok {
		return nil, fmt.Errorf("%w: %q in job %s", ErrUnknownEvent, j.Event.EventType, j.ID)
	}

	log.Printf("[rewarder] Processing job %s: %s for %s wallet %s (attempt %d/%d)",
		j.ID, j.Event.EventType, w.Type, w.Address, j.Attempts+1, rw.maxAttempts)

	for _, name := range names {
		if err = rw.aw.Award(name, w.Address); err != nil {
			return nil, err
		}

		awardsSent.WithLabelValues(name).Inc()
	}

	return &Result{
		Success:     true,
		EventType:   j.Event.EventType,
		Wallet:      w.Address,
		WalletType:  w.Type,
		ProcessedAt: time.Now(),
		Metadata:    j.Event.Metadata,
	}, nil
}

// retryDelay computes the backoff before the next delivery of a failed job from the zero-based count of
// attempts already made: 2^attempts * 2s, the same shape the ledger client uses but applied independently at
// the job level.
func retryDelay(attempts int) time.Duration {
	return time.Duration(1<<uint(attempts)) * 2 * time.Second
}
