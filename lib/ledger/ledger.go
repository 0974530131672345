// Package ledger implements the client for the remote achievement ledger process. The ledger is a stateful
// process reachable through an HTTP message gateway: a read-only dry-run query evaluates a message against the
// process without mutating it, while a signed message mutates state and yields a message identifier whose
// outcome is fetched in a second round trip. Both operations share a bounded retry policy with exponential
// backoff (see retry.go).
package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Tag is a name/value pair attached to a ledger message.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Message is one message produced by the ledger process when evaluating a request.
type Message struct {
	Target string `json:"Target,omitempty"`
	Data   string `json:"Data,omitempty"`
	Tags   []Tag  `json:"Tags,omitempty"`
}

// Result is the outcome of evaluating a message against the ledger process.
type Result struct {
	Messages []Message       `json:"Messages"`
	Output   json.RawMessage `json:"Output,omitempty"`
	Error    string          `json:"Error,omitempty"`
}

// Client defines the two operations available against a ledger process.
type Client interface {
	// DryRun evaluates a read-only query. No signature is required.
	DryRun(processID string, tags []Tag, data string) (*Result, error)
	// Send submits a signed state-mutating message and fetches its outcome, returning the message identifier
	// assigned by the gateway along with the result.
	Send(processID string, tags []Tag, data string, signer Signer) (string, *Result, error)
}

// RemoteError is a non-2xx reply from the gateway. Status carries the HTTP status code so the retry policy can
// classify server-side failures as transient.
type RemoteError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("ledger: gateway replied %d: %s", e.Status, e.Body)
}

// Server reports whether the gateway signalled an internal failure.
func (e *RemoteError) Server() bool {
	return e.Status >= http.StatusInternalServerError
}

// item is the wire shape of a message posted to the gateway.
type item struct {
	Target    string `json:"Target"`
	Owner     string `json:"Owner,omitempty"`
	Data      string `json:"Data,omitempty"`
	Tags      []Tag  `json:"Tags,omitempty"`
	Signature string `json:"Signature,omitempty"`
}

// sendReply is the gateway's acknowledgment of a posted message.
type sendReply struct {
	ID string `json:"id"`
}

// Gateway implements Client over an HTTP message gateway.
type Gateway struct {
	url   string
	hc    *http.Client
	sleep func(time.Duration) // injectable for tests
}

// New returns a Gateway client for the given base URL.
func New(url string) *Gateway {
	return &Gateway{
		url:   url,
		hc:    http.DefaultClient,
		sleep: time.Sleep,
	}
}

// DryRun posts the query to the gateway's dry-run endpoint and decodes the evaluation result.
func (g *Gateway) DryRun(processID string, tags []Tag, data string) (*Result, error) {
	var res Result

	err := g.doJSON(http.MethodPost, g.url+"/dry-run?process-id="+processID,
		item{Target: processID, Tags: tags, Data: data}, &res)
	if err != nil {
		return nil, err
	}

	return &res, nil
}

// Send signs the message, posts it to the gateway and then fetches the evaluation outcome keyed by the
// returned message identifier.
func (g *Gateway) Send(processID string, tags []Tag, data string, signer Signer) (string, *Result, error) {
	it := item{Target: processID, Owner: signer.Owner(), Tags: tags, Data: data}

	sig, err := signer.Sign(digest(it))
	if err != nil {
		return "", nil, fmt.Errorf("ledger: cannot sign message: %w", err)
	}

	it.Signature = base64.RawURLEncoding.EncodeToString(sig)

	var ack sendReply
	if err = g.doJSON(http.MethodPost, g.url+"/message", it, &ack); err != nil {
		return "", nil, err
	}

	if ack.ID == "" {
		return "", nil, fmt.Errorf("ledger: gateway did not assign a message id")
	}

	var res Result
	if err = g.doJSON(http.MethodGet, g.url+"/result/"+ack.ID+"?process-id="+processID, nil, &res); err != nil {
		return ack.ID, nil, err
	}

	return ack.ID, &res, nil
}

// doJSON performs one JSON round trip against the gateway under the shared retry policy. Non-2xx replies are
// surfaced as RemoteError so the policy can classify them.
func (g *Gateway) doJSON(method, url string, body, out interface{}) error {
	var payload []byte

	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("ledger: cannot marshal request: %w", err)
		}
	}

	return retry(g.sleep, func() error {
		req, err := http.NewRequest(method, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("ledger: cannot build request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")

		resp, err := g.hc.Do(req)
		if err != nil {
			return fmt.Errorf("ledger: gateway request failed: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("ledger: cannot read gateway reply: %w", err)
		}

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return &RemoteError{Status: resp.StatusCode, Body: string(raw)}
		}

		if err = json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("ledger: cannot decode gateway reply: %w", err)
		}

		return nil
	})
}

// digest computes the signing digest of a message: the SHA-256 of its deterministic JSON encoding without the
// signature field.
func digest(it item) []byte {
	unsigned := it
	unsigned.Signature = ""

	raw, _ := json.Marshal(unsigned)
	h := sha256.Sum256(raw)

	return h[:]
}
