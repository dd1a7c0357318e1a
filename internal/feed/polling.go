package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/rs/zerolog"
)

// StateSource reports the feed state; the poller only fetches while it is not open.
type StateSource interface {
	State() State
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	Origin   string
	Path     string // snapshot path on the origin
	Token    string
	Interval time.Duration
	Timeout  time.Duration

	RetryAttempts uint
	RetryDelay    time.Duration

	Client *http.Client
	Logger zerolog.Logger
}

// Poller is the HTTP fallback for the status feed. While the feed is not
// open it fetches the status snapshot on an interval.
type Poller struct {
	url           string
	token         string
	interval      time.Duration
	retryAttempts uint
	retryDelay    time.Duration
	client        *http.Client
	source        StateSource
	logger        zerolog.Logger

	mu       sync.Mutex
	lastErr  error
	lastPoll time.Time
	polls    int
	cancel   context.CancelFunc
	done     chan struct{}

	// OnSnapshot receives the raw JSON array of device-status records.
	OnSnapshot func(records json.RawMessage)
}

// PollStatus describes the fallback poller's recent activity.
type PollStatus struct {
	Running   bool      `json:"running"`
	Polls     int       `json:"polls"`
	LastPoll  time.Time `json:"last_poll,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// NewPoller creates a new polling client. source may be nil for one-shot Fetch use.
func NewPoller(opts PollerOptions, source StateSource) (*Poller, error) {
	url, err := HTTPURL(opts.Origin, opts.Path)
	if err != nil {
		return nil, err
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	attempts := opts.RetryAttempts
	if attempts == 0 {
		attempts = 3
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}

	return &Poller{
		url:           url,
		token:         opts.Token,
		interval:      interval,
		retryAttempts: attempts,
		retryDelay:    retryDelay,
		client:        client,
		source:        source,
		logger:        opts.Logger.With().Str("component", "poller").Logger(),
	}, nil
}

// Start begins the polling loop. It polls once immediately.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.pollLoop(ctx, p.done)
}

// Stop stops the polling loop and waits for it to exit
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Status returns the current poller status
func (p *Poller) Status() PollStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	errStr := ""
	if p.lastErr != nil {
		errStr = p.lastErr.Error()
	}
	return PollStatus{
		Running:   p.cancel != nil,
		Polls:     p.polls,
		LastPoll:  p.lastPoll,
		LastError: errStr,
	}
}

func (p *Poller) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	if p.feedOpen() {
		return
	}

	records, err := p.Fetch(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		p.logger.Warn().Err(err).Msg("Fallback poll failed")
		return
	}

	// The feed may have opened while the request was in flight. Its own
	// snapshot is newer than this one.
	if p.feedOpen() {
		p.logger.Debug().Msg("Feed opened during poll, discarding snapshot")
		return
	}

	if p.OnSnapshot != nil {
		p.OnSnapshot(records)
	}
}

func (p *Poller) feedOpen() bool {
	return p.source != nil && p.source.State() == StateOpen
}

// Fetch retrieves the status snapshot once, retrying transient failures.
func (p *Poller) Fetch(ctx context.Context) (json.RawMessage, error) {
	var records json.RawMessage
	err := retry.New(
		retry.Attempts(p.retryAttempts),
		retry.Delay(p.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	).Do(func() error {
		var err error
		records, err = p.fetchOnce(ctx)
		return err
	})

	p.mu.Lock()
	p.polls++
	p.lastPoll = time.Now()
	p.lastErr = err
	p.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	return records, nil
}

func (p *Poller) fetchOnce(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, retry.Unrecoverable(fmt.Errorf("poll returned %d: %s", resp.StatusCode, string(body)))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("poll returned %d: %s", resp.StatusCode, string(body))
	}

	records, err := snapshotRecords(body)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	return records, nil
}

// snapshotRecords accepts either a bare JSON array or an envelope with a data array.
func snapshotRecords(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty snapshot response")
	}
	if trimmed[0] == '[' {
		if !json.Valid(trimmed) {
			return nil, errors.New("invalid snapshot array")
		}
		return json.RawMessage(trimmed), nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("parse snapshot response: %w", err)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || data[0] != '[' {
		return nil, errors.New("snapshot response has no data array")
	}
	return json.RawMessage(data), nil
}
