package tablestore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	tokenCalls  atomic.Int32
	recordCalls atomic.Int32
	rejectFirst atomic.Bool
	tokenDelay  time.Duration

	mu      sync.Mutex
	records []map[string]any
	auth    []string
}

func (s *fakeService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+tokenPath, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		n := s.tokenCalls.Add(1)
		time.Sleep(s.tokenDelay)
		if req["app_secret"] != "secret" {
			fmt.Fprint(w, `{"code":10014,"msg":"app secret invalid"}`)
			return
		}
		fmt.Fprintf(w, `{"code":0,"msg":"ok","tenant_access_token":"t-%d","expire":7200}`, n)
	})
	mux.HandleFunc("POST /open-apis/bitable/v1/apps/base1/tables/tbl1/records", func(w http.ResponseWriter, r *http.Request) {
		s.recordCalls.Add(1)
		if s.rejectFirst.CompareAndSwap(true, false) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			Fields map[string]any `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		s.mu.Lock()
		s.records = append(s.records, body.Fields)
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		s.mu.Unlock()
		fmt.Fprint(w, `{"code":0,"msg":"ok","data":{"record":{"record_id":"rec123"}}}`)
	})
	return mux
}

func newFake(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	fake := &fakeService{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	return fake, srv
}

func TestTokenSourceCachesUntilMargin(t *testing.T) {
	fake, srv := newFake(t)
	ts := NewTokenSource(srv.URL, Credentials{AppID: "app", AppSecret: "secret"}, nil)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return now }

	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t-1", tok)

	now = now.Add(time.Hour)
	tok, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t-1", tok)
	assert.Equal(t, int32(1), fake.tokenCalls.Load())

	// Inside the safety margin before the 2h expiry.
	now = now.Add(56 * time.Minute)
	tok, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t-2", tok)
}

func TestTokenSourceConcurrentRefreshCollapses(t *testing.T) {
	fake, srv := newFake(t)
	fake.tokenDelay = 50 * time.Millisecond
	ts := NewTokenSource(srv.URL, Credentials{AppID: "app", AppSecret: "secret"}, nil)

	var wg sync.WaitGroup
	tokens := make([]string, 20)
	for i := range tokens {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := ts.Token(context.Background())
			assert.NoError(t, err)
			tokens[i] = tok
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fake.tokenCalls.Load())
	for _, tok := range tokens {
		assert.Equal(t, "t-1", tok)
	}
}

func TestTokenSourceErrors(t *testing.T) {
	_, srv := newFake(t)

	_, err := NewTokenSource(srv.URL, Credentials{}, nil).Token(context.Background())
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = NewTokenSource(srv.URL, Credentials{AppID: "app", AppSecret: "wrong"}, nil).Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10014")
}

func TestClientCreateRecord(t *testing.T) {
	fake, srv := newFake(t)
	ts := NewTokenSource(srv.URL, Credentials{AppID: "app", AppSecret: "secret"}, nil)
	c := NewClient(srv.URL, Table{AppToken: "base1", TableID: "tbl1"}, ts, nil)

	id, err := c.CreateRecord(context.Background(), map[string]any{"fullName": "Tran B", "formType": "official"})
	require.NoError(t, err)
	assert.Equal(t, "rec123", id)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.records, 1)
	assert.Equal(t, "Tran B", fake.records[0]["fullName"])
	assert.Equal(t, "Bearer t-1", fake.auth[0])
}

func TestClientRefreshesRejectedToken(t *testing.T) {
	fake, srv := newFake(t)
	fake.rejectFirst.Store(true)
	ts := NewTokenSource(srv.URL, Credentials{AppID: "app", AppSecret: "secret"}, nil)
	c := NewClient(srv.URL, Table{AppToken: "base1", TableID: "tbl1"}, ts, nil)

	require.NoError(t, c.Mirror(context.Background(), map[string]any{"email": "b@example.edu"}))
	assert.Equal(t, int32(2), fake.recordCalls.Load())
	assert.Equal(t, int32(2), fake.tokenCalls.Load())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "Bearer t-2", fake.auth[0])
}

func TestClientUnknownTable(t *testing.T) {
	_, srv := newFake(t)
	ts := NewTokenSource(srv.URL, Credentials{AppID: "app", AppSecret: "secret"}, nil)
	c := NewClient(srv.URL, Table{AppToken: "base1", TableID: "missing"}, ts, nil)

	_, err := c.CreateRecord(context.Background(), map[string]any{})
	assert.Error(t, err)
}
