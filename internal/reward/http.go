package reward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HTTPDispatcher asks a token server to send the reward:
// POST {base}/send/{address} with {"symbol": ..., "amount": ...}.
type HTTPDispatcher struct {
	baseURL string
	amount  json.Number
	client  *http.Client
	logger  *slog.Logger
}

type sendRequest struct {
	Symbol string      `json:"symbol"`
	Amount json.Number `json:"amount"`
}

type sendResponse struct {
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	Message     string `json:"message"`
	Transaction struct {
		Hash string `json:"hash"`
	} `json:"transaction"`
}

// NewHTTPDispatcher creates a token-server dispatcher. A nil client gets a
// 60 second timeout, enough for the server to wait for confirmation.
func NewHTTPDispatcher(baseURL, amount string, client *http.Client, logger *slog.Logger) *HTTPDispatcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if amount == "" {
		amount = "1"
	}
	return &HTTPDispatcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		amount:  json.Number(amount),
		client:  client,
		logger:  logger,
	}
}

// SendReward implements Dispatcher.
func (d *HTTPDispatcher) SendReward(ctx context.Context, req Request) (Receipt, error) {
	body, err := json.Marshal(sendRequest{Symbol: req.Symbol, Amount: d.amount})
	if err != nil {
		return Receipt{}, &DispatchError{Op: "encode", Err: err}
	}

	url := d.baseURL + "/send/" + req.Wallet.Hex()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, &DispatchError{Op: "request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", idempotencyKey(req))

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return Receipt{}, &DispatchError{Op: "send", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Receipt{}, &DispatchError{Op: "read", Err: err}
	}

	var out sendResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return Receipt{}, &DispatchError{Op: "decode", Err: fmt.Errorf("status %d: %w", resp.StatusCode, err)}
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		msg := out.Error
		if out.Message != "" {
			msg += ": " + out.Message
		}
		return Receipt{}, &DispatchError{Op: "send", Err: fmt.Errorf("token server status %d: %s", resp.StatusCode, msg)}
	}

	d.logger.Info("reward sent via token server",
		"user_id", req.UserID,
		"symbol", req.Symbol,
		"tx_hash", out.Transaction.Hash,
	)
	return Receipt{TxHash: out.Transaction.Hash, Symbol: req.Symbol, Wallet: req.Wallet.Hex()}, nil
}

// idempotencyKey lets the token server collapse retries of one win.
func idempotencyKey(req Request) string {
	if req.Key != "" {
		return req.Key
	}
	return uuid.NewString()
}
