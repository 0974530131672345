package achievement

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cheesemint/sra/lib/ledger"
)

// Parse errors for ledger state replies. A parse failure fails the in-flight operation but never replaces an
// already cached snapshot.
var (
	ErrNoMessages = errors.New("achievement: ledger state reply carries no messages")
	ErrNoPayload  = errors.New("achievement: ledger state reply carries no payload")
	ErrBadPayload = errors.New("achievement: malformed ledger state payload")
)

// Entry is one achievement definition in the ledger's catalog.
type Entry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// AwardRecord is the evidence stored in ledger state that a wallet already received an achievement. Its
// presence for a (wallet, achievement id) pair is the idempotency key.
type AwardRecord struct {
	AwardedBy string `json:"awardedBy"`
	AwardedAt int64  `json:"awardedAt"`
	MessageID string `json:"messageId"`
}

// State is a point-in-time snapshot of the remote ledger process state. It is replaced wholesale on refresh,
// never partially mutated.
type State struct {
	Owner        string                            `json:"owner"`
	ACL          map[string]map[string]bool        `json:"acl"`
	Achievements map[string]Entry                  `json:"achievements"` // keyed by ledger-assigned id
	Awards       map[string]map[string]AwardRecord `json:"awards"`       // wallet address -> achievement id -> record
}

// decodeState extracts the state snapshot from a dry-run result: the first message's data field holds the
// JSON-encoded state.
func decodeState(res *ledger.Result) (*State, error) {
	if res == nil || len(res.Messages) == 0 {
		return nil, ErrNoMessages
	}

	payload := res.Messages[0].Data
	if payload == "" {
		return nil, ErrNoPayload
	}

	var st State
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	return &st, nil
}

// HasAward reports whether an award record exists for the wallet and achievement id.
func (s *State) HasAward(wallet, achievementID string) bool {
	_, ok := s.Awards[wallet][achievementID]

	return ok
}

// RoleEnabled reports whether the address is present and enabled under the named ACL role.
func (s *State) RoleEnabled(role, address string) bool {
	return s.ACL[role][address]
}

// RoleAddresses returns the enabled addresses of the named ACL role, sorted for stable error messages.
func (s *State) RoleAddresses(role string) []string {
	var addrs []string

	for addr, enabled := range s.ACL[role] {
		if enabled {
			addrs = append(addrs, addr)
		}
	}

	sort.Strings(addrs)

	return addrs
}
