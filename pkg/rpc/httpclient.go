package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canopy-network/holderscan/pkg/utils"
)

// HTTPClient is a JSON-RPC client over HTTP that implements a circuit-breaker and token-bucket.
type HTTPClient struct {
	endpoints []string
	client    *http.Client
	nextID    atomic.Uint64

	// token-bucket
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time

	// circuit-breaker
	mu       sync.Mutex
	failures map[string]int
	opened   map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration
}

// Opts is the set of options for a new HTTPClient.
type Opts struct {
	Endpoints       []string
	Timeout         time.Duration
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
}

// NewHTTPWithOpts creates a new HTTPClient with the given options.
func NewHTTPWithOpts(o Opts) *HTTPClient {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 5 * time.Second
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}

	c := &HTTPClient{
		endpoints:        utils.Dedup(o.Endpoints),
		client:           client,
		maxTokens:        int64(o.Burst),
		refillEvery:      time.Second / time.Duration(o.RPS),
		failures:         map[string]int{},
		opened:           map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
	c.tokens = c.maxTokens
	c.lastRefill.Store(time.Now())
	return c
}

// refill refills the token-bucket with new tokens if necessary.
func (c *HTTPClient) refill() {
	last := c.lastRefill.Load().(time.Time)
	now := time.Now()
	if now.Sub(last) >= c.refillEvery {
		if atomic.LoadInt64(&c.tokens) < c.maxTokens {
			atomic.AddInt64(&c.tokens, 1)
		}
		c.lastRefill.Store(now)
	}
}

// acquire takes a token from the bucket, blocking until one is available or ctx ends.
func (c *HTTPClient) acquire(ctx context.Context) error {
	for {
		c.refill()
		if atomic.LoadInt64(&c.tokens) > 0 {
			atomic.AddInt64(&c.tokens, -1)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.refillEvery / 2):
		}
	}
}

// isOpen returns true if the endpoint breaker is in the OPEN state.
func (c *HTTPClient) isOpen(ep string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.opened[ep]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(c.opened, ep)
		c.failures[ep] = 0
		return false
	}
	return true
}

// noteFailure marks an endpoint as failed and opens the circuit-breaker if the failure count exceeds the threshold.
func (c *HTTPClient) noteFailure(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep]++
	if c.failures[ep] >= c.breakerThreshold {
		c.opened[ep] = time.Now().Add(c.breakerCooldown)
	}
}

// noteSuccess clears the failure streak of an endpoint.
func (c *HTTPClient) noteSuccess(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep] = 0
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *responseError  `json:"error"`
}

type responseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call sends one JSON-RPC request and decodes its result into out.
// Transport and server-side failures move on to the next endpoint whose breaker is closed;
// a JSON-RPC error object is an answer from the node and is returned as is.
// Every failure is returned as a classified *Error.
func (c *HTTPClient) call(ctx context.Context, method string, params []any, out any) error {
	if len(c.endpoints) == 0 {
		return &Error{Method: method, Kind: KindFatal, Err: errors.New("no endpoints configured")}
	}
	if params == nil {
		params = []any{}
	}

	payload, err := json.Marshal(request{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		// Fatal for this call; don't mark the endpoint as failed.
		return &Error{Method: method, Kind: KindFatal, Err: err}
	}

	var lastErr error
	for _, ep := range c.endpoints {
		// Skip endpoints whose breaker is OPEN.
		if c.isOpen(ep) {
			continue
		}

		if err := c.acquire(ctx); err != nil {
			return &Error{Method: method, Endpoint: ep, Kind: KindFatal, Err: err}
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, ep, bytes.NewReader(payload))
		if reqErr != nil {
			// Request creation failed: not an endpoint failure, just return.
			return &Error{Method: method, Endpoint: ep, Kind: KindFatal, Err: reqErr}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				// The caller gave up; other endpoints will not help.
				return &Error{Method: method, Endpoint: ep, Kind: KindFatal, Err: ctx.Err()}
			}
			lastErr = &Error{Method: method, Endpoint: ep, Kind: transportKind(err), Err: err}
			c.noteFailure(ep)
			continue
		}

		// From here on, always drain+close the body before continuing/returning.
		if resp.StatusCode >= 500 {
			lastErr = &Error{Method: method, Endpoint: ep, Kind: statusKind(resp.StatusCode), Code: resp.StatusCode, Message: fmt.Sprintf("server %d", resp.StatusCode)}
			c.noteFailure(ep)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}
		if resp.StatusCode >= 300 {
			lastErr = &Error{Method: method, Endpoint: ep, Kind: statusKind(resp.StatusCode), Code: resp.StatusCode, Message: fmt.Sprintf("http %d", resp.StatusCode)}
			_ = utils.DrainAndClose(resp.Body)
			continue
		}

		var rpcResp response
		decErr := json.NewDecoder(resp.Body).Decode(&rpcResp)
		_ = utils.DrainAndClose(resp.Body)
		if decErr != nil {
			lastErr = &Error{Method: method, Endpoint: ep, Kind: transportKind(decErr), Err: fmt.Errorf("decode response: %w", decErr)}
			continue
		}
		c.noteSuccess(ep)

		if rpcResp.Error != nil {
			return &Error{
				Method:   method,
				Endpoint: ep,
				Kind:     codeKind(rpcResp.Error.Code),
				Code:     rpcResp.Error.Code,
				Message:  rpcResp.Error.Message,
			}
		}

		if out != nil {
			result := rpcResp.Result
			if len(result) == 0 {
				result = json.RawMessage("null")
			}
			if err := json.Unmarshal(result, out); err != nil {
				return &Error{Method: method, Endpoint: ep, Kind: KindFatal, Err: fmt.Errorf("decode result: %w", err)}
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = &Error{Method: method, Kind: KindFatal, Err: errors.New("all endpoints are circuit-broken")}
	}
	return lastErr
}

// transportKind reports whether a transport failure was a timeout.
func transportKind(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindFatal
}

func statusKind(status int) Kind {
	switch status {
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindFatal
	}
}
