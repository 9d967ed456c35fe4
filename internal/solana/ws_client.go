package solana

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
	// ErrClientClosed is returned by calls made after Close.
	ErrClientClosed = errors.New("websocket client closed")

	errNotConnected = errors.New("websocket not connected")
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// MaxReconnectAttempts bounds consecutive failed reconnects; 0 retries forever.
	MaxReconnectAttempts int
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages. Pongs extend it.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// RequestTimeout bounds the wait for subscribe/unsubscribe confirmations.
	RequestTimeout time.Duration
	// NotificationBuffer is the channel capacity of each subscription.
	NotificationBuffer int
	// OnReconnect is called after every reconnect attempt with its outcome.
	OnReconnect func(attempt int, err error)
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:     1 * time.Second,
		MaxReconnectDelay:  30 * time.Second,
		PingInterval:       30 * time.Second,
		ReadTimeout:        60 * time.Second,
		WriteTimeout:       10 * time.Second,
		RequestTimeout:     30 * time.Second,
		NotificationBuffer: 1024,
	}
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex // guards conn and serializes writes

	closed    atomic.Bool
	closeOnce sync.Once
	requestID atomic.Uint64

	// subs maps the server subscription ID to its confirmed subscription
	subs   map[int64]*LogSubscription
	subsMu sync.Mutex

	// pending maps request ID to the request awaiting a response
	pending   map[uint64]*pendingRequest
	pendingMu sync.Mutex

	err   error
	errMu sync.Mutex

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup
}

type pendingRequest struct {
	method string
	sub    *LogSubscription
	// result is nil for resubscribe requests issued by the reader itself
	result chan rpcResult
}

type rpcResult struct {
	subID int64
	err   error
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.NotificationBuffer <= 0 {
		cfg.NotificationBuffer = DefaultWSConfig().NotificationBuffer
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultWSConfig().RequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &WSClientImpl{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger.With(zap.String("component", "ws")),
		subs:     make(map[int64]*LogSubscription),
		pending:  make(map[uint64]*pendingRequest),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// connect establishes (or replaces) the WebSocket connection.
func (c *WSClientImpl) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	readTimeout := c.config.ReadTimeout
	conn.SetPongHandler(func(string) error {
		if readTimeout > 0 {
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		}
		return nil
	})

	c.conn = conn
	return nil
}

func (c *WSClientImpl) currentConn() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

func (c *WSClientImpl) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return errNotConnected
	}
	if c.config.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	return c.conn.WriteJSON(v)
}

// SubscribeLogs subscribes to transaction logs matching the filter.
// The subscription is registered by the reader before the call returns, so no
// notification sent right after the confirmation is lost.
func (c *WSClientImpl) SubscribeLogs(ctx context.Context, filter LogsFilter) (*LogSubscription, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	sub := newLogSubscription(c, filter, c.config.NotificationBuffer)
	reqID := c.requestID.Add(1)
	result := make(chan rpcResult, 1)
	c.addPending(reqID, &pendingRequest{method: "logsSubscribe", sub: sub, result: result})

	if err := c.writeJSON(subscribeRequest(reqID, filter)); err != nil {
		c.removePending(reqID)
		sub.shutdown(nil)
		return nil, fmt.Errorf("write subscribe: %w", err)
	}

	timer := time.NewTimer(c.config.RequestTimeout)
	defer timer.Stop()

	select {
	case res := <-result:
		if res.err != nil {
			sub.shutdown(nil)
			return nil, fmt.Errorf("logsSubscribe: %w", res.err)
		}
		return sub, nil
	case <-timer.C:
		c.removePending(reqID)
		sub.shutdown(nil)
		return nil, fmt.Errorf("subscription timeout after %v", c.config.RequestTimeout)
	case <-c.done:
		return nil, ErrClientClosed
	case <-ctx.Done():
		c.removePending(reqID)
		sub.shutdown(nil)
		return nil, ctx.Err()
	}
}

func subscribeRequest(reqID uint64, filter LogsFilter) wsRequest {
	mentionsFilter := make(map[string]interface{})
	if len(filter.Mentions) > 0 {
		mentionsFilter["mentions"] = filter.Mentions
	} else {
		mentionsFilter["all"] = nil
	}

	commitment := filter.Commitment
	if commitment == "" {
		commitment = CommitmentConfirmed
	}

	return wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			mentionsFilter,
			map[string]string{"commitment": commitment},
		},
	}
}

// unsubscribe asks the server to drop subID. A nil result channel makes it fire-and-forget.
func (c *WSClientImpl) unsubscribe(ctx context.Context, subID int64, wait bool) error {
	reqID := c.requestID.Add(1)
	var result chan rpcResult
	if wait {
		result = make(chan rpcResult, 1)
	}
	c.addPending(reqID, &pendingRequest{method: "logsUnsubscribe", result: result})

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsUnsubscribe",
		Params:  []interface{}{subID},
	}
	if err := c.writeJSON(req); err != nil {
		c.removePending(reqID)
		return fmt.Errorf("write unsubscribe: %w", err)
	}
	if !wait {
		return nil
	}

	timer := time.NewTimer(c.config.RequestTimeout)
	defer timer.Stop()

	select {
	case res := <-result:
		return res.err
	case <-timer.C:
		c.removePending(reqID)
		return fmt.Errorf("unsubscribe timeout after %v", c.config.RequestTimeout)
	case <-c.done:
		return nil
	case <-ctx.Done():
		c.removePending(reqID)
		return ctx.Err()
	}
}

// Err returns the terminal transport error, or nil while running or after Close.
func (c *WSClientImpl) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close closes the WebSocket connection and every subscription channel.
func (c *WSClientImpl) Close() error {
	c.shutdown(nil)
	c.wg.Wait()
	return nil
}

// shutdown stops the client once. A non-nil cause is reported by Err and by
// every subscription that was still open.
func (c *WSClientImpl) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		c.errMu.Lock()
		c.err = cause
		c.errMu.Unlock()

		close(c.done)

		c.connMu.Lock()
		if c.conn != nil {
			if cause == nil {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			}
			c.conn.Close()
		}
		c.connMu.Unlock()

		c.subsMu.Lock()
		subs := make([]*LogSubscription, 0, len(c.subs))
		for id, sub := range c.subs {
			subs = append(subs, sub)
			delete(c.subs, id)
		}
		c.subsMu.Unlock()
		for _, sub := range subs {
			sub.shutdown(cause)
		}

		c.pendingMu.Lock()
		for id, p := range c.pending {
			if p.result != nil {
				p.result <- rpcResult{err: ErrClientClosed}
			}
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()
	})
}

// readLoop reads messages from WebSocket and dispatches to subscribers.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	for !c.closed.Load() {
		conn := c.currentConn()
		if conn == nil {
			return
		}

		if c.config.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Warn("websocket read failed, reconnecting", zap.Error(err))

			if rerr := c.reconnect(); rerr != nil {
				if c.closed.Load() {
					return
				}
				c.logger.Error("websocket gave up reconnecting", zap.Error(rerr))
				c.shutdown(rerr)
				return
			}
			continue
		}

		c.handleMessage(message)
	}
}

// reconnect redials with exponential backoff and resubscribes all active filters.
func (c *WSClientImpl) reconnect() error {
	delay := c.config.ReconnectDelay
	if delay <= 0 {
		delay = DefaultWSConfig().ReconnectDelay
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if c.config.MaxReconnectAttempts > 0 && attempt > c.config.MaxReconnectAttempts {
			return fmt.Errorf("reconnect failed after %d attempts: %w", c.config.MaxReconnectAttempts, lastErr)
		}

		select {
		case <-c.done:
			return ErrClientClosed
		case <-time.After(delay):
		}

		delay *= 2
		if c.config.MaxReconnectDelay > 0 && delay > c.config.MaxReconnectDelay {
			delay = c.config.MaxReconnectDelay
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.connect(ctx)
		cancel()

		if c.config.OnReconnect != nil {
			c.config.OnReconnect(attempt, err)
		}
		if err != nil {
			lastErr = err
			c.logger.Warn("reconnect attempt failed",
				zap.Int("attempt", attempt),
				zap.Duration("next_delay", delay),
				zap.Error(err))
			continue
		}

		c.logger.Info("websocket reconnected", zap.Int("attempt", attempt))
		c.resubscribeAll()
		return nil
	}
}

// resubscribeAll re-issues every confirmed subscription on the new connection.
// It runs on the reader goroutine, so it only writes requests; the confirmations
// are bound to the subscriptions when the reader sees them.
func (c *WSClientImpl) resubscribeAll() {
	c.subsMu.Lock()
	subs := make([]*LogSubscription, 0, len(c.subs))
	for id, sub := range c.subs {
		subs = append(subs, sub)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	for _, sub := range subs {
		if sub.isDone() {
			continue
		}
		reqID := c.requestID.Add(1)
		c.addPending(reqID, &pendingRequest{method: "logsSubscribe", sub: sub})
		if err := c.writeJSON(subscribeRequest(reqID, sub.filter)); err != nil {
			c.removePending(reqID)
			c.logger.Error("resubscribe write failed", zap.Error(err))
			sub.shutdown(fmt.Errorf("resubscribe: %w", err))
		}
	}
}

// handleMessage processes incoming WebSocket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("unparseable websocket message", zap.Error(err))
		return
	}

	if msg.Method == "logsNotification" {
		c.handleLogsNotification(msg.Params)
		return
	}

	if msg.ID != nil {
		c.handleResponse(*msg.ID, msg.Result, msg.Error)
	}
}

// handleResponse completes the pending request with the given ID.
func (c *WSClientImpl) handleResponse(id uint64, result json.RawMessage, rpcErr *wsError) {
	p := c.takePending(id)
	if p == nil {
		if rpcErr != nil {
			c.logger.Warn("error response for unknown request",
				zap.Uint64("id", id), zap.Int("code", rpcErr.Code), zap.String("message", rpcErr.Message))
		}
		return
	}

	switch p.method {
	case "logsSubscribe":
		subID, err := parseSubscribeResult(result, rpcErr)
		if err != nil {
			if p.result != nil {
				p.result <- rpcResult{err: err}
				return
			}
			c.logger.Error("resubscribe rejected", zap.Error(err))
			p.sub.shutdown(fmt.Errorf("resubscribe: %w", err))
			return
		}

		if p.sub.isDone() {
			// Abandoned while waiting: drop it server side as well.
			if err := c.unsubscribe(context.Background(), subID, false); err != nil {
				c.logger.Debug("drop abandoned subscription", zap.Error(err))
			}
		} else {
			c.subsMu.Lock()
			c.subs[subID] = p.sub
			p.sub.id.Store(subID)
			c.subsMu.Unlock()
		}

		if p.result != nil {
			p.result <- rpcResult{subID: subID}
		}

	case "logsUnsubscribe":
		if p.result == nil {
			return
		}
		if rpcErr != nil {
			p.result <- rpcResult{err: rpcErr}
			return
		}
		p.result <- rpcResult{}
	}
}

func parseSubscribeResult(result json.RawMessage, rpcErr *wsError) (int64, error) {
	if rpcErr != nil {
		return 0, rpcErr
	}
	var subID int64
	if err := json.Unmarshal(result, &subID); err != nil {
		return 0, fmt.Errorf("decode subscription id: %w", err)
	}
	return subID, nil
}

// handleLogsNotification dispatches log notification to subscriber.
func (c *WSClientImpl) handleLogsNotification(params *wsNotificationParams) {
	if params == nil {
		return
	}

	value := params.Result.Value
	notif := LogNotification{
		Signature: value.Signature,
		Logs:      value.Logs,
		Err:       value.Err,
	}
	if params.Result.Context != nil {
		notif.Slot = params.Result.Context.Slot
	}

	c.subsMu.Lock()
	sub, ok := c.subs[params.Subscription]
	c.subsMu.Unlock()

	if ok {
		sub.deliver(notif, c.done)
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	interval := c.config.PingInterval
	if interval <= 0 {
		interval = DefaultWSConfig().PingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.logger.Debug("ping failed", zap.Error(err))
				}
			}
			c.connMu.Unlock()
		}
	}
}

func (c *WSClientImpl) addPending(id uint64, p *pendingRequest) {
	c.pendingMu.Lock()
	c.pending[id] = p
	c.pendingMu.Unlock()
}

func (c *WSClientImpl) removePending(id uint64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

func (c *WSClientImpl) takePending(id uint64) *pendingRequest {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return p
}

// LogSubscription is one live logsSubscribe stream.
type LogSubscription struct {
	client *WSClientImpl
	filter LogsFilter
	id     atomic.Int64

	ch   chan LogNotification
	done chan struct{}
	once sync.Once

	// mu serializes delivery against closing ch
	mu     sync.Mutex
	closed bool

	errMu sync.Mutex
	err   error
}

func newLogSubscription(c *WSClientImpl, filter LogsFilter, buffer int) *LogSubscription {
	return &LogSubscription{
		client: c,
		filter: filter,
		ch:     make(chan LogNotification, buffer),
		done:   make(chan struct{}),
	}
}

// C returns the notification channel. It is closed when the subscription ends.
func (s *LogSubscription) C() <-chan LogNotification {
	return s.ch
}

// ID returns the current server-side subscription ID. It changes after a reconnect.
func (s *LogSubscription) ID() int64 {
	return s.id.Load()
}

// Err reports why the channel was closed; nil means a clean unsubscribe or Close.
func (s *LogSubscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Unsubscribe releases the subscription locally and on the server.
func (s *LogSubscription) Unsubscribe(ctx context.Context) error {
	c := s.client

	c.subsMu.Lock()
	id := s.id.Load()
	if cur, ok := c.subs[id]; ok && cur == s {
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	s.shutdown(nil)

	if c.closed.Load() || id == 0 {
		return nil
	}
	return c.unsubscribe(ctx, id, true)
}

func (s *LogSubscription) isDone() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// deliver blocks until the consumer takes n or the subscription or client ends.
func (s *LogSubscription) deliver(n LogNotification, clientDone <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	select {
	case s.ch <- n:
	case <-s.done:
	case <-clientDone:
	}
}

func (s *LogSubscription) shutdown(cause error) {
	s.once.Do(func() {
		s.errMu.Lock()
		s.err = cause
		s.errMu.Unlock()
		close(s.done)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsMessage struct {
	ID     *uint64               `json:"id"`
	Method string                `json:"method"`
	Result json.RawMessage       `json:"result"`
	Error  *wsError              `json:"error"`
	Params *wsNotificationParams `json:"params"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *wsError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
