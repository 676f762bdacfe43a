package reward

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// DryRunDispatcher logs payouts without touching any chain.
type DryRunDispatcher struct {
	logger *slog.Logger
}

// NewDryRunDispatcher creates a dispatcher that only logs.
func NewDryRunDispatcher(logger *slog.Logger) *DryRunDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunDispatcher{logger: logger}
}

// SendReward implements Dispatcher.
func (d *DryRunDispatcher) SendReward(ctx context.Context, req Request) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, &DispatchError{Op: "dryrun", Err: err}
	}
	r := Receipt{
		TxHash: "dryrun-" + uuid.NewString(),
		Symbol: req.Symbol,
		Wallet: req.Wallet.Hex(),
	}
	d.logger.Info("dry-run reward", "user_id", req.UserID, "symbol", req.Symbol, "wallet", r.Wallet, "tx_hash", r.TxHash)
	return r, nil
}
