package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedState struct {
	mu    sync.Mutex
	state State
}

func (f *fixedState) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fixedState) set(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func newTestPoller(t *testing.T, url string, source StateSource) *Poller {
	t.Helper()
	p, err := NewPoller(PollerOptions{
		Origin:     url,
		Path:       "/api/status/snapshot",
		Token:      "tkn",
		Interval:   10 * time.Millisecond,
		RetryDelay: time.Millisecond,
		Logger:     zerolog.Nop(),
	}, source)
	require.NoError(t, err)
	return p
}

func TestFetchAcceptsBareArrayAndEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"array", `[{"pad_code":"AC1"}]`},
		{"envelope", `{"data":[{"pad_code":"AC1"}],"total":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/status/snapshot", r.URL.Path)
				assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			records, err := newTestPoller(t, srv.URL, nil).Fetch(context.Background())
			require.NoError(t, err)
			assert.JSONEq(t, `[{"pad_code":"AC1"}]`, string(records))
		})
	}
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	p := newTestPoller(t, srv.URL, nil)
	records, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(records))
	assert.Equal(t, int32(3), calls.Load())
	assert.Empty(t, p.Status().LastError)
}

func TestFetchDoesNotRetryUnauthorized(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newTestPoller(t, srv.URL, nil)
	_, err := p.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
	assert.NotEmpty(t, p.Status().LastError)
}

func TestSnapshotRecordsRejectsGarbage(t *testing.T) {
	for _, body := range []string{"", "   ", "[1,", `{"data":{}}`, `{"items":[]}`, "<html>"} {
		_, err := snapshotRecords([]byte(body))
		assert.Error(t, err, "body %q", body)
	}
}

func TestPollerOnlyPollsWhileFeedIsDown(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[{"pad_code":"AC1"}]`))
	}))
	defer srv.Close()

	source := &fixedState{state: StateOpen}
	p := newTestPoller(t, srv.URL, source)

	var snapshots atomic.Int32
	p.OnSnapshot = func(records json.RawMessage) {
		snapshots.Add(1)
	}

	p.Start(context.Background())
	defer p.Stop()
	assert.True(t, p.Status().Running)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, calls.Load(), "must not poll while the feed is open")

	source.set(StateClosed)
	require.Eventually(t, func() bool { return snapshots.Load() >= 2 }, waitFor, tick)

	p.Stop()
	assert.False(t, p.Status().Running)
	n := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}

func TestPollerDiscardsSnapshotWhenFeedOpensMidRequest(t *testing.T) {
	source := &fixedState{state: StateClosed}
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		source.set(StateOpen)
		w.Write([]byte(`[{"pad_code":"AC1"}]`))
	}))
	defer srv.Close()

	p := newTestPoller(t, srv.URL, source)
	var snapshots atomic.Int32
	p.OnSnapshot = func(records json.RawMessage) {
		snapshots.Add(1)
	}

	p.Start(context.Background())
	require.Eventually(t, func() bool { return p.Status().Polls >= 1 }, waitFor, tick)
	time.Sleep(30 * time.Millisecond)
	p.Stop()

	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, snapshots.Load())
}

func TestNewPollerRejectsBadOrigin(t *testing.T) {
	_, err := NewPoller(PollerOptions{Origin: "ws://example.com"}, nil)
	assert.ErrorIs(t, err, ErrInvalidOrigin)
}
