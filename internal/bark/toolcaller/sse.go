package toolcaller

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

// SSETransport speaks JSON-RPC over plain HTTP POST for calls and
// notifications, with a background SSE GET listening for server-pushed
// notifications. Adapted from the teacher's internal/mcp.HTTPTransport.
type SSETransport struct {
	config ServerConfig
	logger *slog.Logger
	client *http.Client

	events    chan *JSONRPCNotification
	connected atomic.Bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewSSETransport builds a transport for cfg; Connect starts the SSE
// listener goroutine.
func NewSSETransport(cfg ServerConfig) *SSETransport {
	return &SSETransport{
		config:   cfg,
		logger:   slog.Default().With("tool_server", cfg.ID, "transport", "http"),
		client:   &http.Client{Timeout: 30 * time.Second},
		events:   make(chan *JSONRPCNotification, 100),
		stopChan: make(chan struct{}),
	}
}

func (t *SSETransport) Connect(ctx context.Context) error {
	if t.config.URL == "" {
		return fmt.Errorf("toolcaller: http server %s: url is required", t.config.ID)
	}
	t.connected.Store(true)
	t.logger.Info("http transport ready", "url", t.config.URL)

	t.wg.Add(1)
	go t.sseLoop(ctx)
	return nil
}

func (t *SSETransport) Close() error {
	if !t.connected.CompareAndSwap(true, false) {
		return nil
	}
	close(t.stopChan)
	t.wg.Wait()
	return nil
}

func (t *SSETransport) Connected() bool { return t.connected.Load() }

func (t *SSETransport) Events() <-chan *JSONRPCNotification { return t.events }

func (t *SSETransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("toolcaller: %s: not connected", t.config.ID)
	}

	req := JSONRPCRequest{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("toolcaller: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("toolcaller: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range t.config.Headers {
		httpReq.Header.Set(k, v)
	}
	if err := setAuthHeader(httpReq, t.config); err != nil {
		return nil, err
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("toolcaller: %s: %w", t.config.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("toolcaller: %s: HTTP %d: %s", t.config.ID, resp.StatusCode, data)
	}

	var rpcResp JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("toolcaller: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

func (t *SSETransport) Notify(ctx context.Context, method string, params any) error {
	if !t.connected.Load() {
		return fmt.Errorf("toolcaller: %s: not connected", t.config.ID)
	}
	note := JSONRPCNotification{JSONRPC: "2.0", Method: method, Params: params}
	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("toolcaller: marshal: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("toolcaller: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range t.config.Headers {
		httpReq.Header.Set(k, v)
	}
	if err := setAuthHeader(httpReq, t.config); err != nil {
		return err
	}
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("toolcaller: %s: %w", t.config.ID, err)
	}
	resp.Body.Close()
	return nil
}

// newReconnectBackOff builds the delay schedule for sseLoop. MaxElapsedTime
// is left at zero (disabled) since the loop is meant to keep retrying for
// the lifetime of the transport; stopChan, not elapsed time, is what ends it.
func newReconnectBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// sseLoop opens a long-lived GET against the server's event stream and
// parses "data: <json>" frames into notifications, reconnecting with
// jittered exponential backoff until stopChan closes. The backoff resets
// after every successful connect so a single flaky reconnect doesn't
// inflate the delay for an otherwise healthy server.
func (t *SSETransport) sseLoop(ctx context.Context) {
	defer t.wg.Done()
	b := newReconnectBackOff()
	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.config.URL, nil)
		if err != nil {
			return
		}
		req.Header.Set("Accept", "text/event-stream")
		for k, v := range t.config.Headers {
			req.Header.Set(k, v)
		}
		if err := setAuthHeader(req, t.config); err != nil {
			t.logger.Error("sign bearer token", "err", err)
			return
		}

		resp, err := t.client.Do(req)
		if err != nil {
			t.logger.Debug("sse connect failed, retrying", "err", err)
			if !t.sleepOrStop(b.NextBackOff()) {
				return
			}
			continue
		}
		b.Reset()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !bytes.HasPrefix([]byte(line), []byte("data:")) {
				continue
			}
			payload := bytes.TrimSpace([]byte(line[len("data:"):]))
			var note JSONRPCNotification
			if err := json.Unmarshal(payload, &note); err == nil {
				select {
				case t.events <- &note:
				default:
				}
			}
		}
		resp.Body.Close()

		if !t.sleepOrStop(b.NextBackOff()) {
			return
		}
	}
}

func (t *SSETransport) sleepOrStop(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-t.stopChan:
		return false
	}
}

var _ Transport = (*SSETransport)(nil)
