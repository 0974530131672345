package rewarder

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cheesemint/sra/lib/msg"
	"github.com/cheesemint/sra/lib/store"
	"github.com/cheesemint/sra/lib/wallet"
)

// fakeAwarder records awards and can be set to fail on a given achievement name.
type fakeAwarder struct {
	awards []string // "name wallet" in call order
	failOn string
}

func (f *fakeAwarder) Award(name, w string) error {
	if name == f.failOn {
		return fmt.Errorf("ledger rejected %s", name)
	}

	f.awards = append(f.awards, name+" "+w)

	return nil
}

// stubBroker implements msg.JobBroker in memory for consumer loop tests.
type stubBroker struct {
	retried []msg.Job
	delays  []time.Duration
	jobCh   chan msg.Job
	errCh   chan error
}

func (s *stubBroker) Setup(interface{}) error { return nil }

func (s *stubBroker) Close() error {
	if s.jobCh != nil {
		close(s.jobCh)
		close(s.errCh)
	}

	return nil
}

func (s *stubBroker) Enqueue(e msg.RewardEvent) (string, error) { return "job-1", nil }

func (s *stubBroker) GetJobs(mut *sync.Mutex) (<-chan msg.Job, <-chan error, error) {
	s.jobCh = make(chan msg.Job)
	s.errCh = make(chan error)

	return s.jobCh, s.errCh, nil
}

func (s *stubBroker) Retry(j msg.Job, delay time.Duration) error {
	s.retried = append(s.retried, j)
	s.delays = append(s.delays, delay)

	return nil
}

func (s *stubBroker) Depths() (map[string]int, error) {
	return map[string]int{msg.StateWaiting: 0, msg.StateRetry: len(s.retried)}, nil
}

// memStore implements store.DB in memory.
type memStore struct {
	mu   sync.Mutex
	recs []store.JobRecord
}

func (m *memStore) SaveJob(rec store.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)

	return nil
}

func (m *memStore) GetJobs(statuses []string) ([]store.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []store.JobRecord

	for _, rec := range m.recs {
		for _, s := range statuses {
			if rec.Status == s {
				out = append(out, rec)
			}
		}
	}

	return out, nil
}

func (m *memStore) Counts() (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := map[string]int{}
	for _, rec := range m.recs {
		out[rec.Status]++
	}

	return out, nil
}

func (m *memStore) last(t *testing.T) store.JobRecord {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.recs) == 0 {
		t.Fatal("no job record saved")
	}

	return m.recs[len(m.recs)-1]
}

func TestProcessRouting(t *testing.T) {
	aw := &fakeAwarder{}
	rw := New("", nil, &stubBroker{}, aw, 3)

	res, err := rw.Process(msg.Job{ID: "j1", Event: msg.RewardEvent{
		EventType:     msg.ArnsSearch,
		WalletAddress: "0x742d35cc6634c0532925a3b844bc9e7595f0beb0",
	}})
	if err != nil {
		t.Fatalf("Error processing job:%e", err)
	}

	// both achievements in order, against the checksummed address
	want := []string{
		"generic-searcher 0x742D35CC6634c0532925A3b844BC9E7595F0BEb0",
		"arns-searcher 0x742D35CC6634c0532925A3b844BC9E7595F0BEb0",
	}
	if len(aw.awards) != len(want) {
		t.Fatalf("awards %v, expected %v", aw.awards, want)
	}

	for i := range want {
		if aw.awards[i] != want[i] {
			t.Errorf("award[%d] %s, expected %s", i, aw.awards[i], want[i])
		}
	}

	if !res.Success || res.EventType != msg.ArnsSearch || res.WalletType != wallet.EVM {
		t.Errorf("unexpected result %+v", res)
	}

	if res.Wallet != "0x742D35CC6634c0532925A3b844BC9E7595F0BEb0" {
		t.Errorf("result wallet was not normalized: %s", res.Wallet)
	}
}

func TestProcessInvalidWallet(t *testing.T) {
	aw := &fakeAwarder{}
	rw := New("", nil, &stubBroker{}, aw, 3)

	_, err := rw.Process(msg.Job{ID: "j2", Event: msg.RewardEvent{
		EventType:     msg.ImageSearch,
		WalletAddress: "invalid-wallet-address",
	}})
	if !errors.Is(err, wallet.ErrUnknownFormat) {
		t.Errorf("expected wallet format error, got %v", err)
	}

	// validation fails before any award is attempted
	if len(aw.awards) != 0 {
		t.Errorf("awards sent for invalid wallet: %v", aw.awards)
	}
}

func TestProcessUnknownEvent(t *testing.T) {
	rw := New("", nil, &stubBroker{}, &fakeAwarder{}, 3)

	_, err := rw.Process(msg.Job{ID: "j3", Event: msg.RewardEvent{
		EventType:     "text-search",
		WalletAddress: "7S3P4HxJpyyigGzodYwHtCxZyUQe9JiBMHyRWXArAaKv",
	}})
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("expected unknown event error, got %v", err)
	}
}

func TestProcessAwardError(t *testing.T) {
	aw := &fakeAwarder{failOn: "generic-searcher"}
	rw := New("", nil, &stubBroker{}, aw, 3)

	_, err := rw.Process(msg.Job{ID: "j4", Event: msg.RewardEvent{
		EventType:     msg.VideoSearch,
		WalletAddress: "7S3P4HxJpyyigGzodYwHtCxZyUQe9JiBMHyRWXArAaKv",
	}})
	if err == nil {
		t.Fatal("expected award error")
	}

	// the first award failed, the second must not be attempted
	if len(aw.awards) != 0 {
		t.Errorf("awards sent after failure: %v", aw.awards)
	}
}

func TestManageJobCompleted(t *testing.T) {
	db := &memStore{}
	mb := &stubBroker{}
	rw := New("", db, mb, &fakeAwarder{}, 3)

	rw.manageJob(msg.Job{ID: "j5", Event: msg.RewardEvent{
		EventType:     msg.AudioSearch,
		WalletAddress: "vLRHFqCw1uHu75xqB4fCDW-QxpkpJxBtFD9g4QYUbfw",
	}})

	rec := db.last(t)
	if rec.Status != store.StatusCompleted || rec.ID != "j5" || rec.Attempts != 1 {
		t.Errorf("unexpected record %+v", rec)
	}

	if rec.WalletType != string(wallet.Arweave) {
		t.Errorf("wallet type %s, expected %s", rec.WalletType, wallet.Arweave)
	}

	if len(mb.retried) != 0 {
		t.Errorf("completed job was rescheduled: %v", mb.retried)
	}
}

func TestManageJobRetried(t *testing.T) {
	db := &memStore{}
	mb := &stubBroker{}
	rw := New("", db, mb, &fakeAwarder{failOn: "generic-searcher"}, 3)

	// first delivery of a failing job goes back to the queue, nothing is recorded
	rw.manageJob(msg.Job{ID: "j6", Event: msg.RewardEvent{
		EventType:     msg.ArnsSearch,
		WalletAddress: "vLRHFqCw1uHu75xqB4fCDW-QxpkpJxBtFD9g4QYUbfw",
	}})

	if len(mb.retried) != 1 || mb.retried[0].ID != "j6" {
		t.Fatalf("expected 1 reschedule, got %v", mb.retried)
	}

	if mb.delays[0] != 2*time.Second {
		t.Errorf("retry delay %s, expected 2s", mb.delays[0])
	}

	if len(db.recs) != 0 {
		t.Errorf("record saved for a rescheduled job: %+v", db.recs)
	}
}

func TestManageJobFailed(t *testing.T) {
	db := &memStore{}
	mb := &stubBroker{}
	rw := New("", db, mb, &fakeAwarder{failOn: "generic-searcher"}, 3)

	// third delivery exhausts the attempt budget
	rw.manageJob(msg.Job{ID: "j7", Attempts: 2, Event: msg.RewardEvent{
		EventType:     msg.ArnsSearch,
		WalletAddress: "vLRHFqCw1uHu75xqB4fCDW-QxpkpJxBtFD9g4QYUbfw",
	}})

	if len(mb.retried) != 0 {
		t.Errorf("exhausted job was rescheduled: %v", mb.retried)
	}

	rec := db.last(t)
	if rec.Status != store.StatusFailed || rec.Attempts != 3 || rec.Error == "" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestRetryDelay(t *testing.T) {
	for i, exp := range []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second} {
		if got := retryDelay(i); got != exp {
			t.Errorf("retryDelay(%d) = %s, expected %s", i, got, exp)
		}
	}
}
