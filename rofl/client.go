// Package rofl speaks the line-delimited JSON protocol of the enclave host's
// local Unix socket. The host performs the privileged operations the worker
// itself cannot: authenticated read-only contract calls with the TEE
// identity, and signing plus broadcasting of transactions with the
// enclave-bound key.
package rofl

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/worldtree/genetics-worker/module"
)

const (
	DefaultCallMethod   = "eth_call"
	DefaultSubmitMethod = "tx.sign-submit"

	DefaultCallTimeout      = 30 * time.Second
	DefaultMaxResponseBytes = 1 << 20 // 1 MiB
	DefaultGasLimit         = 1_000_000
)

// Config carries the host protocol parameters. The method names are
// configuration because the host's exact naming is not publicly fixed;
// equivalent hosts expose the same two operations under different names.
type Config struct {
	SocketPath   string
	CallMethod   string
	SubmitMethod string

	// CallTimeout is the overall deadline applied to a single call when the
	// caller's context carries none.
	CallTimeout time.Duration

	// MaxResponseBytes caps the size of a single response line.
	MaxResponseBytes int64

	// GasLimit is attached to every submitted transaction.
	GasLimit uint64

	// StripHexPrefix drops the "0x" prefix from addresses and call data in
	// transaction submissions. Some host builds reject prefixed payloads.
	StripHexPrefix bool
}

func DefaultConfig(socketPath string) Config {
	return Config{
		SocketPath:       socketPath,
		CallMethod:       DefaultCallMethod,
		SubmitMethod:     DefaultSubmitMethod,
		CallTimeout:      DefaultCallTimeout,
		MaxResponseBytes: DefaultMaxResponseBytes,
		GasLimit:         DefaultGasLimit,
	}
}

// Client issues calls against the host socket. One connection is dialed per
// call; the client holds no connection state and is safe for concurrent use.
type Client struct {
	log     zerolog.Logger
	cfg     Config
	metrics module.WorkerMetrics
	nextID  *atomic.Uint64
}

func NewClient(log zerolog.Logger, metrics module.WorkerMetrics, cfg Config) *Client {
	return &Client{
		log:     log.With().Str("component", "host_client").Logger(),
		cfg:     cfg,
		metrics: metrics,
		nextID:  atomic.NewUint64(0),
	}
}

type rpcRequest struct {
	ID     uint64      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type callParams struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

type submitParams struct {
	To   string `json:"to"`
	Data string `json:"data"`
	Gas  uint64 `json:"gas"`
}

// Probe checks that the host socket accepts connections. It performs no
// request; a reachable socket is enough for the startup health gate.
func (c *Client) Probe(ctx context.Context) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", c.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHostUnavailable, err)
	}
	_ = conn.Close()
	return nil
}

// Call performs an authenticated read-only contract call and returns the raw
// return data.
//
// Expected error returns: ErrHostUnavailable, ErrTimeout, *HostError.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	req := rpcRequest{
		Method: c.cfg.CallMethod,
		Params: []interface{}{
			callParams{To: to.Hex(), Data: "0x" + hex.EncodeToString(data)},
			"latest",
		},
	}
	result, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}

	var hexData string
	if err := json.Unmarshal(result, &hexData); err != nil {
		return nil, fmt.Errorf("unexpected call result shape: %w", err)
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(hexData, "0x"))
	if err != nil {
		return nil, fmt.Errorf("call result is not hex: %w", err)
	}
	return raw, nil
}

// SignSubmit asks the host to sign the transaction with the enclave-bound
// key and broadcast it. Returns the transaction hash reported by the host.
//
// Expected error returns: ErrHostUnavailable, ErrTimeout, *HostError. A
// *HostError for which IsStateRejection holds means the contract's status
// gate refused the transition; callers treat that as already processed.
func (c *Client) SignSubmit(ctx context.Context, to common.Address, data []byte) (string, error) {
	toHex := to.Hex()
	dataHex := "0x" + hex.EncodeToString(data)
	if c.cfg.StripHexPrefix {
		toHex = strings.TrimPrefix(strings.ToLower(toHex), "0x")
		dataHex = strings.TrimPrefix(dataHex, "0x")
	}
	req := rpcRequest{
		Method: c.cfg.SubmitMethod,
		Params: submitParams{To: toHex, Data: dataHex, Gas: c.cfg.GasLimit},
	}
	result, err := c.roundTrip(ctx, req)
	if err != nil {
		return "", err
	}

	// the hash arrives either as {"hash": "0x…"} or as a bare string
	var wrapped struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(result, &wrapped); err == nil && wrapped.Hash != "" {
		return wrapped.Hash, nil
	}
	var hash string
	if err := json.Unmarshal(result, &hash); err == nil {
		return hash, nil
	}
	return "", fmt.Errorf("unexpected submit result shape: %s", string(result))
}

// roundTrip dials the socket, writes one request line and reads one response
// line, honoring the context deadline throughout.
func (c *Client) roundTrip(ctx context.Context, req rpcRequest) (json.RawMessage, error) {
	req.ID = c.nextID.Inc()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		c.metrics.HostCall(req.Method, time.Since(start))
	}()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", c.cfg.SocketPath)
	if err != nil {
		return nil, c.mapTransportError(ctx, fmt.Errorf("dial %s: %v", c.cfg.SocketPath, err))
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// unblock pending reads promptly if the context is cancelled mid-call
	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetDeadline(time.Now())
		case <-watcherDone:
		}
	}()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	payload = append(payload, '\n')
	if _, err := conn.Write(payload); err != nil {
		return nil, c.mapTransportError(ctx, fmt.Errorf("write request: %v", err))
	}

	reader := bufio.NewReader(&limitedReader{conn: conn, remaining: c.cfg.MaxResponseBytes, max: c.cfg.MaxResponseBytes})
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, c.mapTransportError(ctx, fmt.Errorf("read response: %v", err))
	}

	var resp rpcResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed response line: %v", ErrHostUnavailable, err)
	}
	if resp.Error != nil {
		return nil, &HostError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return resp.Result, nil
}

// mapTransportError classifies a failed dial/read/write: a lapsed deadline
// becomes ErrTimeout, everything else ErrHostUnavailable. Plain context
// cancellation (shutdown) is surfaced as the context error so callers do not
// retry it.
func (c *Client) mapTransportError(ctx context.Context, err error) error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case context.Canceled:
		return ctx.Err()
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrHostUnavailable, err)
}

// limitedReader fails the read once the response exceeds the configured cap,
// instead of silently truncating like io.LimitReader would.
type limitedReader struct {
	conn      net.Conn
	remaining int64
	max       int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, fmt.Errorf("response exceeds %d bytes", l.max)
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.conn.Read(p)
	l.remaining -= int64(n)
	return n, err
}
