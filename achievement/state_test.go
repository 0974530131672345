package achievement

import (
	"errors"
	"testing"

	"github.com/cheesemint/sra/lib/ledger"
)

// TestDecodeState checks the typed parse errors for every malformed reply shape.
func TestDecodeState(t *testing.T) {
	cases := []struct {
		name string
		res  *ledger.Result
		wErr error
	}{
		{"nil_result", nil, ErrNoMessages},
		{"no_messages", &ledger.Result{}, ErrNoMessages},
		{"no_payload", &ledger.Result{Messages: []ledger.Message{{Data: ""}}}, ErrNoPayload},
		{"bad_payload", &ledger.Result{Messages: []ledger.Message{{Data: "{oops"}}}, ErrBadPayload},
	}

	for _, c := range cases {
		if _, err := decodeState(c.res); !errors.Is(err, c.wErr) {
			t.Errorf("[%s] expected %v, got %v", c.name, c.wErr, err)
		}
	}

	payload := `{"owner":"o","acl":{"Award-Cheese-Mint":{"w1":true,"w2":false}},` +
		`"achievements":{"id-1":{"id":"id-1","name":"generic-searcher"}},` +
		`"awards":{"addr":{"id-1":{"awardedBy":"w1","awardedAt":1700000000,"messageId":"m1"}}}}`

	st, err := decodeState(&ledger.Result{Messages: []ledger.Message{{Data: payload}}})
	if err != nil {
		t.Fatalf("decodeState err: %v", err)
	}

	if !st.HasAward("addr", "id-1") || st.HasAward("addr", "id-2") || st.HasAward("other", "id-1") {
		t.Errorf("HasAward mismatch for %+v", st.Awards)
	}

	if !st.RoleEnabled(RoleAwarder, "w1") || st.RoleEnabled(RoleAwarder, "w2") || st.RoleEnabled(RoleAwarder, "w3") {
		t.Errorf("RoleEnabled mismatch for %+v", st.ACL)
	}

	if got := st.RoleAddresses(RoleAwarder); len(got) != 1 || got[0] != "w1" {
		t.Errorf("RoleAddresses = %v, want [w1]", got)
	}
}
