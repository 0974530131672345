// Package achievement implements the achievement ledger service. It owns a time-bounded cache of remote
// ledger state, verifies the service credential against the ledger ACL once at startup, resolves achievement
// names to ledger-assigned identifiers and exposes an idempotent award operation. The cache and the signing
// credential are shared across concurrent job executions, so all cache access goes through a single lock and
// refresh is an atomic replace of the whole snapshot.
package achievement

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cheesemint/sra/lib/ledger"
)

// RoleAwarder is the ACL role the service credential must hold to mint awards.
const RoleAwarder = "Award-Cheese-Mint"

// Message tags of the ledger protocol.
const (
	actionViewState = "View-State"
	actionAward     = "Award-Cheese-Mint"
	tagMintID       = "Cheese-Mint-Id"
	tagAwardTo      = "Award-To-Address"
)

// DefaultTTL bounds the age of the cached ledger state.
const DefaultTTL = 300000 * time.Millisecond

// Required lists the achievement names the processor can grant. The catalog built at startup must contain
// every one of them; a missing entry is a fatal startup condition.
var Required = []string{
	"generic-searcher",
	"arns-searcher",
	"image-searcher",
	"audio-searcher",
	"video-searcher",
}

// Service implements the achievement ledger service for one ledger process.
type Service struct {
	client    ledger.Client
	signer    ledger.Signer
	processID string
	ttl       time.Duration

	l         sync.Mutex // guards state and fetchedAt
	state     *State
	fetchedAt time.Time

	catalog map[string]string // achievement name -> ledger-assigned id, built once at startup

	now func() time.Time // injectable for tests
}

// New returns a Service for the given ledger process. A non-positive ttl selects DefaultTTL. The service is
// not usable until Start has completed.
func New(client ledger.Client, signer ledger.Signer, processID string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Service{
		client:    client,
		signer:    signer,
		processID: processID,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Start performs the one-time bootstrap: a forced state fetch, the ACL check of the credential's wallet
// address and the build of the achievement name to id catalog. Any failure here must abort process startup.
func (s *Service) Start() error {
	addr := s.signer.Address()

	st, err := s.ProcessState(true)
	if err != nil {
		return fmt.Errorf("achievement: cannot fetch ledger state: %w", err)
	}

	if !st.RoleEnabled(RoleAwarder, addr) {
		return fmt.Errorf("achievement: wallet %s is not enabled under role %s, allowed: %s",
			addr, RoleAwarder, strings.Join(st.RoleAddresses(RoleAwarder), ", "))
	}

	catalog := make(map[string]string, len(st.Achievements))
	for id, entry := range st.Achievements {
		catalog[entry.Name] = id
	}

	var missing []string

	for _, name := range Required {
		if _, ok := catalog[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("achievement: ledger catalog is missing required achievements: %s",
			strings.Join(missing, ", "))
	}

	s.catalog = catalog

	log.Printf("[achievement] Ledger service ready, process %s, wallet %s, %d achievements in catalog",
		s.processID, addr, len(catalog))

	return nil
}

// ProcessState returns the cached ledger state when it is younger than the TTL and refresh is not forced.
// Otherwise it queries the ledger with a dry run and installs the fresh snapshot atomically. A parse failure
// leaves the cache untouched.
func (s *Service) ProcessState(forceRefresh bool) (*State, error) {
	s.l.Lock()
	if !forceRefresh && s.state != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		st := s.state
		s.l.Unlock()

		return st, nil
	}
	s.l.Unlock()

	res, err := s.client.DryRun(s.processID, []ledger.Tag{{Name: "Action", Value: actionViewState}}, "")
	if err != nil {
		return nil, fmt.Errorf("achievement: ledger state query failed: %w", err)
	}

	st, err := decodeState(res)
	if err != nil {
		return nil, err
	}

	s.l.Lock()
	s.state = st
	s.fetchedAt = s.now()
	s.l.Unlock()

	return st, nil
}

// InvalidateStateCache clears the cache unconditionally. It is called after every successful award since the
// remote state is stale from that point on.
func (s *Service) InvalidateStateCache() {
	s.l.Lock()
	s.state = nil
	s.fetchedAt = time.Time{}
	s.l.Unlock()
}

// AchievementID resolves an achievement name against the startup-built catalog. Unknown names should not
// occur given the startup validation, so they are logged and reported as absent rather than failed.
func (s *Service) AchievementID(name string) (string, bool) {
	id, ok := s.catalog[name]
	if !ok {
		log.Printf("[achievement] Unknown achievement name %q, ignoring", name)
	}

	return id, ok
}

// Award grants the named achievement to the wallet address. An unresolved name is a logged no-op and so is an
// achievement the wallet already holds according to (possibly cached) ledger state. This check-then-send is
// best-effort de-duplication only: two concurrent awards for the same pair can both pass the check and submit
// duplicate messages. Errors from the send path propagate to the caller, which owns the retry decision.
func (s *Service) Award(name, wallet string) error {
	id, ok := s.AchievementID(name)
	if !ok {
		return nil
	}

	st, err := s.ProcessState(false)
	if err != nil {
		return err
	}

	if st.HasAward(wallet, id) {
		log.Printf("[achievement] %s already awarded to %s, skipping", name, wallet)

		return nil
	}

	msgID, res, err := s.client.Send(s.processID, []ledger.Tag{
		{Name: "Action", Value: actionAward},
		{Name: tagMintID, Value: id},
		{Name: tagAwardTo, Value: wallet},
	}, "", s.signer)
	if err != nil {
		return fmt.Errorf("achievement: awarding %s to %s failed: %w", name, wallet, err)
	}

	if res != nil && res.Error != "" {
		return fmt.Errorf("achievement: ledger rejected award of %s to %s: %s", name, wallet, res.Error)
	}

	// the next state read must observe the new award
	s.InvalidateStateCache()

	log.Printf("[achievement] Awarded %s to %s, message %s", name, wallet, msgID)

	return nil
}
