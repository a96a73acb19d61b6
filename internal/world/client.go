package world

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrClientClosed is returned for calls made after Close.
	ErrClientClosed = errors.New("world client closed")
	// ErrDisconnected is returned while the connection is down and being
	// redialed. Calls in flight when the connection drops fail with it too.
	ErrDisconnected = errors.New("world connection down")
)

const codeNotFound = "not_found"

const (
	defaultDialTimeout = 10 * time.Second
	defaultMinBackoff  = 100 * time.Millisecond
	defaultMaxBackoff  = 5 * time.Second
)

type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type constructParams struct {
	ConstructID uint64 `json:"construct_id"`
}

// Option configures a WSClient.
type Option func(*WSClient)

// WithDialTimeout bounds each redial attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(c *WSClient) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithBackoff sets the delay before the first redial and the cap it doubles up to.
func WithBackoff(first, limit time.Duration) Option {
	return func(c *WSClient) {
		if first > 0 {
			c.minBackoff = first
		}
		if limit >= c.minBackoff {
			c.maxBackoff = limit
		}
	}
}

// session is one live websocket connection. done closes when its read loop exits.
type session struct {
	conn *websocket.Conn
	done chan struct{}
}

// WSClient is a request/response client for the game world bot endpoint.
// Reads run in a dedicated goroutine that routes replies to waiting callers
// by request id; writes are serialized because a websocket connection
// supports one concurrent writer. When the connection drops the same
// goroutine redials with exponential backoff until Close.
type WSClient struct {
	url         string
	timeout     time.Duration
	dialTimeout time.Duration
	minBackoff  time.Duration
	maxBackoff  time.Duration

	nextID  atomic.Uint64
	writeMu sync.Mutex

	mu   sync.Mutex
	sess *session // nil while reconnecting

	pendingMu sync.Mutex
	pending   map[uint64]chan response

	life      context.Context
	stop      context.CancelFunc
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

// Dial connects to the world endpoint and starts the read loop.
func Dial(ctx context.Context, url string, requestTimeout time.Duration, log *zap.Logger, opts ...Option) (*WSClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial world %s: %w", url, err)
	}
	life, stop := context.WithCancel(context.Background())
	c := &WSClient{
		url:         url,
		timeout:     requestTimeout,
		dialTimeout: defaultDialTimeout,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		pending:     make(map[uint64]chan response),
		life:        life,
		stop:        stop,
		log:         log.With(zap.String("world", url)),
	}
	for _, opt := range opts {
		opt(c)
	}
	s := &session{conn: conn, done: make(chan struct{})}
	c.sess = s
	go c.run(s)
	return c, nil
}

func (c *WSClient) ConstructInfo(ctx context.Context, constructID uint64) (ConstructInfo, error) {
	var info ConstructInfo
	err := c.call(ctx, "construct.info", constructParams{ConstructID: constructID}, &info)
	return info, err
}

func (c *WSClient) Radar(ctx context.Context, constructID uint64) ([]Contact, error) {
	var contacts []Contact
	err := c.call(ctx, "construct.radar", constructParams{ConstructID: constructID}, &contacts)
	return contacts, err
}

func (c *WSClient) ResetCombatLock(ctx context.Context, constructID uint64) error {
	return c.call(ctx, "construct.reset_combat_lock", constructParams{ConstructID: constructID}, nil)
}

func (c *WSClient) call(ctx context.Context, method string, params, out any) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	s := c.current()
	if s == nil {
		return fmt.Errorf("world %s: %w", method, ErrDisconnected)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	id := c.nextID.Add(1)
	ch := make(chan response, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	if dl, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(dl)
	}
	err := s.conn.WriteJSON(request{ID: id, Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("world %s: write: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			if resp.Error.Code == codeNotFound {
				return ErrConstructNotFound
			}
			return fmt.Errorf("world %s: %s", method, resp.Error.Message)
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("world %s: decode: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("world %s: %w", method, ctx.Err())
	case <-s.done:
		if c.closed.Load() {
			return ErrClientClosed
		}
		return fmt.Errorf("world %s: %w", method, ErrDisconnected)
	case <-c.life.Done():
		return ErrClientClosed
	}
}

func (c *WSClient) current() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// run owns the connection lifecycle: it reads until the session fails, then
// redials until a new session is up or the client is closed.
func (c *WSClient) run(s *session) {
	for {
		c.readLoop(s)

		c.mu.Lock()
		if c.sess == s {
			c.sess = nil
		}
		c.mu.Unlock()

		if c.closed.Load() {
			return
		}
		if s = c.redial(); s == nil {
			return
		}
	}
}

func (c *WSClient) readLoop(s *session) {
	defer func() {
		_ = s.conn.Close()
		close(s.done)
	}()

	for {
		var resp response
		if err := s.conn.ReadJSON(&resp); err != nil {
			if !c.closed.Load() {
				c.log.Warn("world connection lost", zap.Error(err))
			}
			return
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		c.pendingMu.Unlock()
		if !ok {
			c.log.Debug("dropping reply for unknown request", zap.Uint64("id", resp.ID))
			continue
		}
		select {
		case ch <- resp:
		default:
		}
	}
}

// redial returns the new session, or nil once the client is closed.
func (c *WSClient) redial() *session {
	delay := c.minBackoff
	for attempt := 1; ; attempt++ {
		select {
		case <-c.life.Done():
			return nil
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(c.life, c.dialTimeout)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		cancel()
		if err != nil {
			if c.closed.Load() {
				return nil
			}
			c.log.Warn("world redial failed",
				zap.Int("attempt", attempt),
				zap.Duration("next_in", min(delay*2, c.maxBackoff)),
				zap.Error(err),
			)
			delay = min(delay*2, c.maxBackoff)
			continue
		}

		s := &session{conn: conn, done: make(chan struct{})}
		c.mu.Lock()
		if c.closed.Load() {
			c.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		c.sess = s
		c.mu.Unlock()
		c.log.Info("world connection restored", zap.Int("attempts", attempt))
		return s
	}
}

// Close shuts the connection down and stops redialing. Outstanding calls
// return ErrClientClosed.
func (c *WSClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.stop()
		c.mu.Lock()
		if c.sess != nil {
			err = c.sess.conn.Close()
		}
		c.mu.Unlock()
	})
	return err
}

func (c *WSClient) IsClosed() bool {
	return c.closed.Load()
}

// Connected reports whether a live connection is currently up.
func (c *WSClient) Connected() bool {
	return c.current() != nil
}
