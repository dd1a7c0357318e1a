package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	// ErrNotOpen is returned by Send when there is no open connection.
	ErrNotOpen = errors.New("feed connection is not open")

	// ErrRetriesExhausted is attached to the final failed state event.
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
)

// Options configures a Manager.
type Options struct {
	Origin string // page origin, e.g. https://admin.example.com
	Path   string // feed path on that origin, default /ws
	Token  string // bearer token passed through on the handshake

	Backoff Backoff

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration

	// ShouldReconnect is consulted after an unexpected close. Nil means always.
	ShouldReconnect func() bool

	Dialer Dialer // default WSDialer
	Clock  Clock  // default SystemClock
	Logger zerolog.Logger
}

type notification struct {
	event *StateEvent
	msg   *Message
}

// Manager owns the single live connection to the status feed. It handles
// connect, reconnect with backoff, heartbeat replies and message dispatch.
type Manager struct {
	endpoint        string
	header          http.Header
	backoff         Backoff
	shouldReconnect func() bool
	dialer          Dialer
	clock           Clock
	logger          zerolog.Logger

	mu          sync.Mutex
	state       State
	conn        Conn
	generation  uint64
	attempts    int
	retry       Timer
	cancelDial  context.CancelFunc
	suppressed  bool
	subscribed  bool
	sessionID   string
	lastError   error
	lastMessage time.Time

	onMessage func(Message)
	onState   func(StateEvent)

	// notifications run outside mu, one drainer at a time, in order
	queue    []notification
	draining bool

	writeMu sync.Mutex
}

// NewManager creates a manager in the idle state. Nothing is dialed until Connect.
func NewManager(opts Options) (*Manager, error) {
	endpoint, err := Endpoint(opts.Origin, opts.Path)
	if err != nil {
		return nil, err
	}

	b := opts.Backoff
	if b.Base <= 0 {
		b = DefaultBackoff()
	}
	if b.Max < b.Base {
		b.Max = b.Base
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &WSDialer{
			HandshakeTimeout: opts.HandshakeTimeout,
			WriteTimeout:     opts.WriteTimeout,
			IdleTimeout:      opts.IdleTimeout,
		}
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	shouldReconnect := opts.ShouldReconnect
	if shouldReconnect == nil {
		shouldReconnect = func() bool { return true }
	}

	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	return &Manager{
		endpoint:        endpoint,
		header:          header,
		backoff:         b,
		shouldReconnect: shouldReconnect,
		dialer:          dialer,
		clock:           clock,
		logger:          opts.Logger.With().Str("component", "feed").Str("endpoint", endpoint).Logger(),
		state:           StateIdle,
	}, nil
}

// Endpoint returns the feed URL the manager dials.
func (m *Manager) Endpoint() string {
	return m.endpoint
}

// OnMessage registers the handler for forwarded inbound messages,
// replacing any previous one.
func (m *Manager) OnMessage(fn func(Message)) {
	m.mu.Lock()
	m.onMessage = fn
	m.mu.Unlock()
}

// OnStateChange registers the state listener, replacing any previous one.
func (m *Manager) OnStateChange(fn func(StateEvent)) {
	m.mu.Lock()
	m.onState = fn
	m.mu.Unlock()
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the number of reconnects scheduled since the last open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Status returns the current connection status
func (m *Manager) Status() ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	errStr := ""
	if m.lastError != nil {
		errStr = m.lastError.Error()
	}

	return ConnectionStatus{
		State:        m.state,
		Endpoint:     m.endpoint,
		Attempts:     m.attempts,
		MaxAttempts:  m.backoff.MaxAttempts,
		RetryPending: m.retry != nil,
		Subscribed:   m.subscribed,
		SessionID:    m.sessionID,
		LastError:    errStr,
		LastMessage:  m.lastMessage,
	}
}

// Connect starts a connection. It is a no-op while connecting or open.
// From any other state it resets the attempt counter and dials.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateOpen {
		m.mu.Unlock()
		m.logger.Debug().Msg("Connect ignored, connection already active")
		return
	}
	m.suppressed = false
	m.attempts = 0
	m.startLocked()
	m.mu.Unlock()

	m.drain()
}

// Disconnect closes the connection with a normal closure and suppresses
// reconnects until the next Connect. Safe to call from any state, any number of times.
func (m *Manager) Disconnect(reason string) {
	m.mu.Lock()
	m.suppressed = true
	m.stopRetryLocked()
	m.cancelDialLocked()
	m.generation++

	conn := m.conn
	m.conn = nil
	m.subscribed = false

	if conn != nil {
		m.setStateLocked(StateClosing, nil)
	} else if m.state != StateClosed {
		m.setStateLocked(StateClosed, nil)
	}
	m.mu.Unlock()
	m.drain()

	if conn == nil {
		return
	}

	m.writeMu.Lock()
	err := conn.Close(websocket.CloseNormalClosure, reason)
	m.writeMu.Unlock()
	if err != nil {
		m.logger.Debug().Err(err).Msg("Error closing feed connection")
	}

	m.mu.Lock()
	if m.state == StateClosing {
		m.setStateLocked(StateClosed, nil)
	}
	m.mu.Unlock()
	m.drain()

	m.logger.Info().Str("reason", reason).Msg("Feed disconnected")
}

// Send serializes msg and writes it to the open connection. Nothing is
// queued: when the connection is not open the message is dropped.
func (m *Manager) Send(msg any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panicked: %v", r)
			m.logger.Error().Err(err).Msg("Failed to send feed message")
		}
	}()

	m.mu.Lock()
	state, conn := m.state, m.conn
	m.mu.Unlock()

	if state != StateOpen || conn == nil {
		m.logger.Warn().Str("state", state.String()).Msg("Dropping feed message, connection not open")
		return ErrNotOpen
	}

	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to marshal feed message")
		return fmt.Errorf("marshal message: %w", err)
	}

	return m.write(conn, data)
}

// RequestFullRefresh asks the backend to resend the full status snapshot.
func (m *Manager) RequestFullRefresh() error {
	return m.Send(OutgoingMessage{Type: TypeRequestFullUpdate})
}

// startLocked begins a new dial. Caller holds mu.
func (m *Manager) startLocked() {
	m.stopRetryLocked()
	m.cancelDialLocked()

	prev := m.conn
	m.conn = nil
	m.subscribed = false

	m.generation++
	gen := m.generation
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	m.sessionID = uuid.NewString()

	m.setStateLocked(StateConnecting, nil)
	go m.dial(ctx, gen, prev, m.sessionID)
}

func (m *Manager) dial(ctx context.Context, gen uint64, prev Conn, sessionID string) {
	if prev != nil {
		m.writeMu.Lock()
		_ = prev.Close(websocket.CloseNormalClosure, "reconnecting")
		m.writeMu.Unlock()
	}

	header := m.header.Clone()
	header.Set("X-Client-Session", sessionID)

	logger := m.logger.With().Str("session", sessionID).Logger()
	logger.Info().Msg("Connecting to status feed")

	conn, err := m.dialer.Dial(ctx, m.endpoint, header)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close(websocket.CloseNormalClosure, "superseded")
		}
		return
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}

	if err != nil {
		m.lastError = err
		m.setStateLocked(StateFailed, err)
		m.scheduleRetryLocked()
		m.mu.Unlock()
		m.drain()
		logger.Warn().Err(err).Msg("Status feed connection failed")
		return
	}

	m.conn = conn
	m.attempts = 0
	m.lastError = nil
	m.stopRetryLocked()
	m.setStateLocked(StateOpen, nil)
	m.mu.Unlock()

	logger.Info().Msg("Status feed connected")
	m.subscribe(gen, conn)
	m.drain()

	m.readLoop(gen, conn)
}

func (m *Manager) subscribe(gen uint64, conn Conn) {
	data, _ := json.Marshal(OutgoingMessage{Type: TypeSubscribeStatus})
	if err := m.write(conn, data); err != nil {
		return
	}

	m.mu.Lock()
	if gen == m.generation {
		m.subscribed = true
	}
	m.mu.Unlock()
}

// readLoop reads incoming frames until the connection ends
func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(gen, conn, err)
			return
		}
		m.handleFrame(gen, conn, data)
	}
}

func (m *Manager) handleClose(gen uint64, conn Conn, err error) {
	code := closeCode(err)
	reconnect := code != websocket.CloseNormalClosure && m.shouldReconnect()

	m.mu.Lock()
	if gen != m.generation {
		// Disconnect or a newer Connect already took over.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.subscribed = false

	if code == websocket.CloseNormalClosure {
		m.setStateLocked(StateClosed, nil)
	} else {
		m.lastError = err
		m.setStateLocked(StateClosed, err)
		if reconnect {
			m.scheduleRetryLocked()
		}
	}
	m.mu.Unlock()
	m.drain()

	m.writeMu.Lock()
	_ = conn.Close(websocket.CloseNormalClosure, "")
	m.writeMu.Unlock()

	if code == websocket.CloseNormalClosure {
		m.logger.Info().Msg("Status feed closed normally, not reconnecting")
	} else {
		m.logger.Warn().Err(err).Int("code", code).Bool("reconnect", reconnect).Msg("Status feed closed unexpectedly")
	}
}

// handleFrame decodes one inbound frame. Bad frames are logged and dropped
// without touching the connection state.
func (m *Manager) handleFrame(gen uint64, conn Conn, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		m.logger.Warn().Err(err).Int("bytes", len(data)).Msg("Failed to parse feed message")
		return
	}
	if msg.Type == "" {
		m.logger.Warn().Msg("Feed message without type, ignoring")
		return
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	m.lastMessage = m.clock.Now()

	switch {
	case msg.Type == TypePing:
		m.mu.Unlock()
		pong, _ := json.Marshal(OutgoingMessage{Type: TypePong, Timestamp: m.clock.Now().UnixMilli()})
		if err := m.write(conn, pong); err == nil {
			m.logger.Debug().Str("server_time", msg.ServerTime).Msg("Answered heartbeat")
		}
	case msg.Type == TypePong:
		m.mu.Unlock()
		m.logger.Debug().Msg("Heartbeat pong received")
	case forwarded(msg.Type):
		m.queue = append(m.queue, notification{msg: &msg})
		m.mu.Unlock()
		m.drain()
	default:
		m.mu.Unlock()
		m.logger.Warn().Str("type", msg.Type).Msg("Unknown feed message type")
	}
}

func (m *Manager) write(conn Conn, data []byte) error {
	m.writeMu.Lock()
	err := conn.WriteMessage(data)
	m.writeMu.Unlock()
	if err != nil {
		m.logger.Warn().Err(err).Msg("Feed write error")
	}
	return err
}

// scheduleRetryLocked arms the single reconnect timer, or gives up once the
// attempts are used. Caller holds mu.
func (m *Manager) scheduleRetryLocked() {
	if m.suppressed {
		return
	}
	if m.backoff.Exhausted(m.attempts) {
		m.stopRetryLocked()
		m.setStateLocked(StateFailed, ErrRetriesExhausted)
		m.logger.Error().Int("attempts", m.attempts).Msg("Giving up on status feed, reconnect attempts exhausted")
		return
	}

	delay := m.backoff.Delay(m.attempts)
	m.attempts++
	m.stopRetryLocked()

	gen := m.generation
	m.retry = m.clock.AfterFunc(delay, func() { m.retryFired(gen) })
	m.logger.Info().Dur("delay", delay).Int("attempt", m.attempts).Msg("Reconnect scheduled")
}

func (m *Manager) retryFired(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.suppressed || m.retry == nil {
		m.mu.Unlock()
		return
	}
	m.retry = nil
	if m.state == StateConnecting || m.state == StateOpen {
		m.mu.Unlock()
		return
	}
	m.startLocked()
	m.mu.Unlock()

	m.drain()
}

func (m *Manager) stopRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func (m *Manager) cancelDialLocked() {
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
}

// setStateLocked records a transition and queues its event. Caller holds mu.
func (m *Manager) setStateLocked(next State, cause error) {
	if next == m.state && cause == nil {
		return
	}
	ev := StateEvent{
		Old:      m.state,
		New:      next,
		Err:      cause,
		Attempts: m.attempts,
		At:       m.clock.Now(),
	}
	m.state = next
	m.queue = append(m.queue, notification{event: &ev})
}

// drain delivers queued notifications. If another goroutine is already
// draining, it picks up whatever was queued here.
func (m *Manager) drain() {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	for len(m.queue) > 0 {
		n := m.queue[0]
		m.queue[0] = notification{}
		m.queue = m.queue[1:]
		onState, onMessage := m.onState, m.onMessage
		m.mu.Unlock()

		m.deliver(n, onState, onMessage)

		m.mu.Lock()
	}
	m.queue = nil
	m.draining = false
	m.mu.Unlock()
}

func (m *Manager) deliver(n notification, onState func(StateEvent), onMessage func(Message)) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Msg("Feed callback panicked")
		}
	}()

	switch {
	case n.event != nil:
		if n.event.Connected() {
			m.logger.Info().Msg("Status feed open")
		}
		if onState != nil {
			onState(*n.event)
		}
	case n.msg != nil:
		if onMessage != nil {
			onMessage(*n.msg)
		}
	}
}
