// Package reward pays prizes out to winners' wallets.
package reward

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAddress is returned for text that is not an EVM wallet address.
var ErrInvalidAddress = errors.New("invalid wallet address")

var walletPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidateAddress checks that s is "0x" followed by exactly 40 hex digits.
// Surrounding whitespace is ignored. Checksums are not enforced.
func ValidateAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !walletPattern.MatchString(s) {
		return common.Address{}, ErrInvalidAddress
	}
	return common.HexToAddress(s), nil
}

// Request describes one payout.
type Request struct {
	UserID string
	Wallet common.Address
	// Symbol is the token to send, the subject the player solved.
	Symbol string
	// Key identifies the win being paid. Retries for the same win carry the
	// same key, so a dispatcher never pays one win twice.
	Key string
}

// Receipt identifies a completed payout.
type Receipt struct {
	TxHash string `json:"tx_hash"`
	Symbol string `json:"symbol"`
	Wallet string `json:"wallet"`
}

// Dispatcher performs payouts. Callers validate the address first.
type Dispatcher interface {
	SendReward(ctx context.Context, req Request) (Receipt, error)
}

// DispatchError wraps a failed payout with the stage that failed.
type DispatchError struct {
	Op  string
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("reward %s: %v", e.Op, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// PendingError reports a payout that was broadcast but not yet confirmed.
// Retrying with the same Request.Key waits on the same transaction.
type PendingError struct {
	TxHash string
	Err    error
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("reward transaction %s pending: %v", e.TxHash, e.Err)
}

func (e *PendingError) Unwrap() error {
	return e.Err
}
