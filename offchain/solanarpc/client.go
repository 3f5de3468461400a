package solanarpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

var (
	ErrMissingRPCURL    = errors.New("missing rpc url")
	ErrRPCError         = errors.New("solana rpc error")
	ErrAccountNotFound  = errors.New("account not found")
	ErrUnexpectedResult = errors.New("unexpected rpc result")
)

type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: %d %s", ErrRPCError.Error(), e.Code, e.Message)
}

func (e *RPCError) Unwrap() error { return ErrRPCError }

type Client struct {
	rpcURL     string
	http       *http.Client
	commitment string

	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
}

func New(rpcURL string, httpClient *http.Client) *Client {
	rpcURL = strings.TrimSpace(rpcURL)
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		rpcURL:      rpcURL,
		http:        httpClient,
		commitment:  "confirmed",
		maxAttempts: 7,
		backoff:     1 * time.Second,
		maxBackoff:  10 * time.Second,
	}
}

func ClientFromEnv() (*Client, error) {
	raw := strings.TrimSpace(os.Getenv("SOLANA_RPC_URL"))
	if raw == "" {
		return nil, ErrMissingRPCURL
	}
	return New(raw, nil), nil
}

// WithCommitment returns a copy of c reading at the given commitment level.
func (c *Client) WithCommitment(commitment string) *Client {
	out := *c
	out.commitment = commitment
	return &out
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func isRateLimitedRPCError(code int, message string) bool {
	if code == 429 || code == -32429 {
		return true
	}
	msg := strings.ToLower(strings.TrimSpace(message))
	return strings.Contains(msg, "rate") && strings.Contains(msg, "limit")
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) rpcCall(ctx context.Context, method string, params any, out any) error {
	if c == nil {
		return errors.New("nil rpc client")
	}
	if strings.TrimSpace(c.rpcURL) == "" {
		return ErrMissingRPCURL
	}

	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "1",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepWithContext(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
			if backoff > c.maxBackoff {
				backoff = c.maxBackoff
			}
		}

		retry, err := c.roundTrip(ctx, reqBody, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("%w: no response", ErrRPCError)
}

// roundTrip performs one request. retry reports whether err is transient
// (rate limiting or an undecodable body).
func (c *Client) roundTrip(ctx context.Context, reqBody []byte, out any) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(reqBody))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	_ = resp.Body.Close()
	if readErr != nil {
		return false, readErr
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return true, fmt.Errorf("%w: http status=%d", ErrRPCError, resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return true, fmt.Errorf("decode rpc response: %w", err)
	}
	if rr.Error != nil {
		return isRateLimitedRPCError(rr.Error.Code, rr.Error.Message), &RPCError{Code: rr.Error.Code, Message: rr.Error.Message}
	}
	if out == nil {
		return false, nil
	}
	if len(rr.Result) == 0 {
		return false, fmt.Errorf("%w: empty result", ErrRPCError)
	}
	if err := json.Unmarshal(rr.Result, out); err != nil {
		return false, fmt.Errorf("decode result: %w", err)
	}
	return false, nil
}

// Slot returns the current slot at the client's commitment. It makes the
// client usable as the slot source of a lookup table service.
func (c *Client) Slot(ctx context.Context) (uint64, error) {
	var resp uint64
	if err := c.rpcCall(ctx, "getSlot", []any{map[string]any{"commitment": c.commitment}}, &resp); err != nil {
		return 0, err
	}
	return resp, nil
}

// LatestBlockhash returns a finalized blockhash, falling back to
// getRecentBlockhash on nodes that predate getLatestBlockhash.
func (c *Client) LatestBlockhash(ctx context.Context) ([32]byte, error) {
	type blockhashResult struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	var out [32]byte
	var resp blockhashResult
	if err := c.rpcCall(ctx, "getLatestBlockhash", []any{map[string]any{"commitment": "finalized"}}, &resp); err != nil {
		var old blockhashResult
		if err2 := c.rpcCall(ctx, "getRecentBlockhash", []any{}, &old); err2 != nil {
			return out, err
		}
		resp = old
	}
	bh, err := solana.ParsePubkey(resp.Value.Blockhash)
	if err != nil {
		return out, fmt.Errorf("%w: blockhash %q", ErrUnexpectedResult, resp.Value.Blockhash)
	}
	copy(out[:], bh[:])
	return out, nil
}

// SendTransaction submits a signed wire transaction and returns its
// signature.
func (c *Client) SendTransaction(ctx context.Context, tx []byte, skipPreflight bool) (string, error) {
	if len(tx) == 0 {
		return "", errors.New("empty tx")
	}
	params := []any{
		base64.StdEncoding.EncodeToString(tx),
		map[string]any{
			"encoding":            "base64",
			"skipPreflight":       skipPreflight,
			"preflightCommitment": c.commitment,
		},
	}
	var sig string
	if err := c.rpcCall(ctx, "sendTransaction", params, &sig); err != nil {
		return "", err
	}
	return sig, nil
}

func decodeAccountData(data []any) ([]byte, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: missing account data", ErrUnexpectedResult)
	}
	s, ok := data[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: account data encoding", ErrUnexpectedResult)
	}
	return base64.StdEncoding.DecodeString(s)
}

type accountValue struct {
	Owner string `json:"owner"`
	Data  []any  `json:"data"`
}

func (c *Client) account(ctx context.Context, pubkey solana.Pubkey) (*accountValue, error) {
	var resp struct {
		Value *accountValue `json:"value"`
	}
	params := []any{
		pubkey.Base58(),
		map[string]any{
			"encoding":   "base64",
			"commitment": c.commitment,
		},
	}
	if err := c.rpcCall(ctx, "getAccountInfo", params, &resp); err != nil {
		return nil, err
	}
	if resp.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
	}
	return resp.Value, nil
}

// AddressLookupTable fetches and decodes a native lookup table account,
// rejecting accounts owned by any other program.
func (c *Client) AddressLookupTable(ctx context.Context, table solana.Pubkey) (solana.AddressLookupTableState, error) {
	v, err := c.account(ctx, table)
	if err != nil {
		return solana.AddressLookupTableState{}, err
	}
	if v.Owner != solana.AddressLookupTableProgramID.Base58() {
		return solana.AddressLookupTableState{}, fmt.Errorf("%w: %s is owned by %s", solana.ErrInvalidAddressLookupTable, table, v.Owner)
	}
	raw, err := decodeAccountData(v.Data)
	if err != nil {
		return solana.AddressLookupTableState{}, err
	}
	st, err := solana.DecodeAddressLookupTable(raw)
	if err != nil {
		return solana.AddressLookupTableState{}, fmt.Errorf("parse address lookup table: %w", err)
	}
	return st, nil
}

type LookupTableAccount struct {
	Pubkey solana.Pubkey
	State  solana.AddressLookupTableState
}

// authorityOffset is where the authority key sits in the table header.
const authorityOffset = 22

// LookupTablesByAuthority lists the native lookup tables whose authority
// is the given key.
func (c *Client) LookupTablesByAuthority(ctx context.Context, authority solana.Pubkey) ([]LookupTableAccount, error) {
	type resultItem struct {
		Pubkey  string `json:"pubkey"`
		Account struct {
			Data []any `json:"data"`
		} `json:"account"`
	}

	var resp []resultItem
	params := []any{
		solana.AddressLookupTableProgramID.Base58(),
		map[string]any{
			"encoding":   "base64",
			"commitment": c.commitment,
			"filters": []any{
				map[string]any{"memcmp": map[string]any{
					"offset": authorityOffset,
					"bytes":  authority.Base58(),
				}},
			},
		},
	}
	if err := c.rpcCall(ctx, "getProgramAccounts", params, &resp); err != nil {
		return nil, err
	}

	out := make([]LookupTableAccount, 0, len(resp))
	for _, it := range resp {
		pk, err := solana.ParsePubkey(it.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("%w: pubkey %q", ErrUnexpectedResult, it.Pubkey)
		}
		raw, err := decodeAccountData(it.Account.Data)
		if err != nil {
			return nil, err
		}
		st, err := solana.DecodeAddressLookupTable(raw)
		if err != nil {
			return nil, fmt.Errorf("parse address lookup table %s: %w", it.Pubkey, err)
		}
		out = append(out, LookupTableAccount{Pubkey: pk, State: st})
	}
	return out, nil
}
