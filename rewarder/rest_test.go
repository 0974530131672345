package rewarder

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/cheesemint/sra/lib/msg"
	"github.com/cheesemint/sra/lib/store"
)

func TestAPI(t *testing.T) {
	db := &memStore{}
	_ = db.SaveJob(store.JobRecord{ID: "done-1", Status: store.StatusCompleted, EventType: msg.ArnsSearch})
	_ = db.SaveJob(store.JobRecord{ID: "dead-1", Status: store.StatusFailed, EventType: msg.ImageSearch})

	mb := &stubBroker{}

	// set up server for API
	rw := New("", db, mb, &fakeAwarder{}, 3)
	go rw.Init("", "3031")
	time.Sleep(200 * time.Millisecond) // let the server come up

	// define tests
	cases := []struct {
		name, method, uri string      // case name, http method to use and uri
		obj               interface{} // object for POST
		status            int         // http status code
		errExp            bool        // error expected in response
	}{
		{"homePage_1", http.MethodGet, "http://localhost:3031/", nil, http.StatusOK, false},
		{"health_1", http.MethodGet, "http://localhost:3031/health", nil, http.StatusOK, false},
		{"jobs_1", http.MethodGet, "http://localhost:3031/jobs", nil, http.StatusOK, false},
		{"jobs_2", http.MethodGet, "http://localhost:3031/jobs?status=failed", nil, http.StatusOK, false},
		{"jobs_3", http.MethodGet, "http://localhost:3031/jobs?status=sleeping", nil, http.StatusBadRequest, true},
		{"reward_1", http.MethodPost, "http://localhost:3031/rewards", msg.RewardEvent{EventType: msg.ArnsSearch, WalletAddress: "vLRHFqCw1uHu75xqB4fCDW-QxpkpJxBtFD9g4QYUbfw"}, http.StatusAccepted, false},
		{"reward_2", http.MethodPost, "http://localhost:3031/rewards", msg.RewardEvent{EventType: "text-search", WalletAddress: "vLRHFqCw1uHu75xqB4fCDW-QxpkpJxBtFD9g4QYUbfw"}, http.StatusBadRequest, true},
		{"reward_3", http.MethodPost, "http://localhost:3031/rewards", msg.RewardEvent{EventType: msg.ArnsSearch, WalletAddress: "short-addr"}, http.StatusBadRequest, true},
	}

	// run tests
	for _, c := range cases {
		s, b, e, err := makeRequest(c.method, c.uri, c.obj)
		if err != nil {
			t.Errorf("[%s] Error in request:%e", c.name, err)

			continue
		}

		if s != c.status {
			t.Errorf("[%s] Error in StatusCode:%d expected:%d", c.name, s, c.status)
		}

		if (e != "") != c.errExp {
			t.Errorf("[%s] Error in response error:%q expected error:%v", c.name, e, c.errExp)
		}

		switch c.name {
		case "jobs_1":
			var jobs []store.JobRecord
			if err = json.Unmarshal([]byte(b), &jobs); err != nil {
				t.Errorf("[%s] Error unmarshaling body:%s error:%s", c.name, b, err)
			} else if len(jobs) != 2 {
				t.Errorf("[%s] Error in response:%v expected 2 records", c.name, jobs)
			}
		case "jobs_2":
			var jobs []store.JobRecord
			if err = json.Unmarshal([]byte(b), &jobs); err != nil {
				t.Errorf("[%s] Error unmarshaling body:%s error:%s", c.name, b, err)
			} else if len(jobs) != 1 || jobs[0].ID != "dead-1" {
				t.Errorf("[%s] Error in response:%v expected dead-1 only", c.name, jobs)
			}
		case "health_1":
			var h health
			if err = json.Unmarshal([]byte(b), &h); err != nil {
				t.Errorf("[%s] Error unmarshaling body:%s error:%s", c.name, b, err)
			} else if h.Jobs[store.StatusCompleted] != 1 || h.Jobs[store.StatusFailed] != 1 {
				t.Errorf("[%s] Error in response:%+v", c.name, h)
			}
		case "reward_1":
			if b != "job-1" {
				t.Errorf("[%s] Error in response:%s expected job id", c.name, b)
			}
		}
	}

	rw.Stop()
}

// makeRequest places a http request on uri. Depending on method it will include obj in the request (ie. for
// POST). Returns the status code, the body and error fields of the received JSON response.
func makeRequest(method, uri string, obj interface{}) (s int, b, e string, err error) {
	var resp *http.Response

	switch method {
	case http.MethodGet:
		if resp, err = http.Get(uri); err != nil {
			return
		}
	case http.MethodPost:
		var pl []byte
		if pl, err = json.Marshal(obj); err != nil {
			return
		}

		if resp, err = http.Post(uri, "application/json;charset=utf8", bytes.NewBuffer(pl)); err != nil {
			return
		}
	}

	s = resp.StatusCode

	var v struct {
		B string `json:"body"`
		E string `json:"error"`
	}

	err = json.NewDecoder(resp.Body).Decode(&v)
	resp.Body.Close()

	return s, v.B, v.E, err
}
