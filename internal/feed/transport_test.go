package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedServer plays the backend side of the status feed.
type feedServer struct {
	upgrader websocket.Upgrader

	mu       sync.Mutex
	accepted int
	received []OutgoingMessage
	headers  []http.Header
	conns    []*websocket.Conn
}

func (s *feedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.accepted++
	s.headers = append(s.headers, r.Header.Clone())
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg OutgoingMessage
		if json.Unmarshal(data, &msg) != nil {
			continue
		}
		s.mu.Lock()
		s.received = append(s.received, msg)
		s.mu.Unlock()

		if msg.Type == TypeSubscribeStatus {
			_ = conn.WriteJSON(map[string]any{
				"type":        TypeStatusUpdate,
				"data":        []map[string]any{{"pad_code": "AC1", "current_status": "running"}},
				"total_count": 1,
			})
			_ = conn.WriteJSON(map[string]any{"type": TypePing, "server_time": "2024-05-01T10:00:00"})
		}
	}
}

func (s *feedServer) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var types []string
	for _, m := range s.received {
		types = append(types, m.Type)
	}
	return types
}

func (s *feedServer) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

func (s *feedServer) last() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[len(s.conns)-1]
}

func TestManagerOverRealWebSocket(t *testing.T) {
	backend := &feedServer{}
	mux := http.NewServeMux()
	mux.Handle("/ws", backend)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	m, err := NewManager(Options{
		Origin:           srv.URL,
		Token:            "abc",
		Backoff:          Backoff{Base: 20 * time.Millisecond, Max: 100 * time.Millisecond, MaxAttempts: 5},
		HandshakeTimeout: time.Second,
		WriteTimeout:     time.Second,
		Logger:           zerolog.Nop(),
	})
	require.NoError(t, err)
	defer m.Disconnect("test done")

	rec := &recorder{}
	m.OnMessage(rec.onMessage)
	m.OnStateChange(rec.onState)

	m.Connect()
	waitState(t, m, StateOpen)

	require.Eventually(t, func() bool { return len(rec.Messages()) == 1 }, waitFor, tick)
	snapshot := rec.Messages()[0]
	assert.Equal(t, TypeStatusUpdate, snapshot.Type)
	assert.Equal(t, 1, snapshot.TotalCount)
	assert.JSONEq(t, `[{"pad_code":"AC1","current_status":"running"}]`, string(snapshot.Data))

	require.Eventually(t, func() bool {
		types := backend.Received()
		return len(types) == 2 && types[0] == TypeSubscribeStatus && types[1] == TypePong
	}, waitFor, tick)

	backend.mu.Lock()
	assert.Equal(t, "Bearer abc", backend.headers[0].Get("Authorization"))
	backend.mu.Unlock()

	// drop the socket without a close frame: the client must come back
	require.NoError(t, backend.last().UnderlyingConn().Close())
	require.Eventually(t, func() bool { return backend.Accepted() == 2 }, waitFor, tick)
	waitState(t, m, StateOpen)
	assert.Equal(t, 0, m.Attempts())

	// the new session subscribed and answered its ping; the handler is idle
	require.Eventually(t, func() bool { return len(backend.Received()) == 4 }, waitFor, tick)

	// a normal close from the server is final
	conn := backend.last()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	waitState(t, m, StateClosed)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 2, backend.Accepted())
}

func TestManagerDialFailureAgainstDeadServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	origin := srv.URL
	srv.Close()

	m, err := NewManager(Options{
		Origin:  origin,
		Backoff: Backoff{Base: 5 * time.Millisecond, Max: 10 * time.Millisecond, MaxAttempts: 2},
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	defer m.Disconnect("test done")

	m.Connect()
	require.Eventually(t, func() bool {
		st := m.Status()
		return st.State == StateFailed && st.Attempts == 2 && !st.RetryPending
	}, waitFor, tick)
	assert.NotEmpty(t, m.Status().LastError)
}

func TestWSConnIdleTimeout(t *testing.T) {
	quiet := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	srv := httptest.NewServer(quiet)
	defer srv.Close()

	url, err := Endpoint(srv.URL, "/")
	require.NoError(t, err)

	d := &WSDialer{HandshakeTimeout: time.Second, IdleTimeout: 50 * time.Millisecond}
	conn, err := d.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.CloseNormalClosure, "")

	_, err = conn.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, websocket.CloseAbnormalClosure, closeCode(err))
}
