package reward

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// tokenManagerABI covers the one TokenManager method the game calls. The
// contract picks the amount itself.
const tokenManagerABI = `[{"inputs":[{"internalType":"string","name":"symbol","type":"string"},{"internalType":"address","name":"destination","type":"address"}],"name":"sendToken","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

// ChainBackend is the subset of ethclient.Client the dispatcher needs.
type ChainBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ChainConfig configures the on-chain dispatcher.
type ChainConfig struct {
	RPCURL         string
	PrivateKey     string
	ManagerAddress string
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
}

// ChainDispatcher calls TokenManager.sendToken(symbol, destination) from the
// manager wallet and waits for the receipt.
type ChainDispatcher struct {
	backend  ChainBackend
	abi      abi.ABI
	key      *ecdsa.PrivateKey
	from     common.Address
	manager  common.Address
	signer   types.Signer
	timeout  time.Duration
	interval time.Duration
	logger   *slog.Logger

	// sendMu keeps nonce assignment and broadcast in order.
	sendMu sync.Mutex
	closer func()

	inflightMu sync.Mutex
	inflight   map[string]inflightTx
}

// inflightTx is a broadcast transaction still waiting for its receipt.
type inflightTx struct {
	hash   common.Hash
	symbol string
	wallet common.Address
}

// NewChainDispatcher dials the RPC endpoint and resolves the chain id.
func NewChainDispatcher(ctx context.Context, cfg ChainConfig, logger *slog.Logger) (*ChainDispatcher, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", cfg.RPCURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("query chain id: %w", err)
	}
	d, err := newChainDispatcher(client, chainID, cfg, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	d.closer = client.Close
	d.logger.Info("chain dispatcher ready",
		"chain_id", chainID.String(),
		"sender", d.from.Hex(),
		"token_manager", d.manager.Hex(),
	)
	return d, nil
}

func newChainDispatcher(backend ChainBackend, chainID *big.Int, cfg ChainConfig, logger *slog.Logger) (*ChainDispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parsed, err := abi.JSON(strings.NewReader(tokenManagerABI))
	if err != nil {
		return nil, fmt.Errorf("parse token manager abi: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if !common.IsHexAddress(cfg.ManagerAddress) {
		return nil, fmt.Errorf("token manager %q: %w", cfg.ManagerAddress, ErrInvalidAddress)
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 2 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	return &ChainDispatcher{
		backend:  backend,
		abi:      parsed,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		manager:  common.HexToAddress(cfg.ManagerAddress),
		signer:   types.LatestSignerForChainID(chainID),
		timeout:  cfg.ReceiptTimeout,
		interval: cfg.PollInterval,
		logger:   logger,
		inflight: make(map[string]inflightTx),
	}, nil
}

// SendReward implements Dispatcher. A transaction that is broadcast but not
// mined within the receipt timeout yields a *PendingError; a later call with
// the same Key polls that transaction again instead of sending a new one.
func (d *ChainDispatcher) SendReward(ctx context.Context, req Request) (Receipt, error) {
	pending, ok := d.lookup(req.Key)
	if ok {
		d.logger.Info("resuming reward transaction",
			"user_id", req.UserID,
			"key", req.Key,
			"tx_hash", pending.hash.Hex(),
		)
	} else {
		data, err := d.abi.Pack("sendToken", req.Symbol, req.Wallet)
		if err != nil {
			return Receipt{}, &DispatchError{Op: "pack", Err: err}
		}
		tx, err := d.broadcast(ctx, data)
		if err != nil {
			return Receipt{}, err
		}
		pending = inflightTx{hash: tx.Hash(), symbol: req.Symbol, wallet: req.Wallet}
		d.remember(req.Key, pending)
		d.logger.Info("reward transaction sent",
			"user_id", req.UserID,
			"symbol", req.Symbol,
			"wallet", req.Wallet.Hex(),
			"tx_hash", pending.hash.Hex(),
		)
	}

	receipt, err := d.waitReceipt(ctx, pending.hash)
	if err != nil {
		d.logger.Warn("reward transaction pending",
			"user_id", req.UserID,
			"tx_hash", pending.hash.Hex(),
			"error", err,
		)
		return Receipt{}, &PendingError{TxHash: pending.hash.Hex(), Err: err}
	}
	d.forget(req.Key)
	if receipt.Status != types.ReceiptStatusSuccessful {
		return Receipt{}, &DispatchError{Op: "receipt", Err: fmt.Errorf("transaction %s reverted", pending.hash.Hex())}
	}
	return Receipt{TxHash: pending.hash.Hex(), Symbol: pending.symbol, Wallet: pending.wallet.Hex()}, nil
}

func (d *ChainDispatcher) lookup(key string) (inflightTx, bool) {
	if key == "" {
		return inflightTx{}, false
	}
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	tx, ok := d.inflight[key]
	return tx, ok
}

func (d *ChainDispatcher) remember(key string, tx inflightTx) {
	if key == "" {
		return
	}
	d.inflightMu.Lock()
	d.inflight[key] = tx
	d.inflightMu.Unlock()
}

func (d *ChainDispatcher) forget(key string) {
	if key == "" {
		return
	}
	d.inflightMu.Lock()
	delete(d.inflight, key)
	d.inflightMu.Unlock()
}

func (d *ChainDispatcher) broadcast(ctx context.Context, data []byte) (*types.Transaction, error) {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	nonce, err := d.backend.PendingNonceAt(ctx, d.from)
	if err != nil {
		return nil, &DispatchError{Op: "nonce", Err: err}
	}
	gasPrice, err := d.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &DispatchError{Op: "gas price", Err: err}
	}
	gas, err := d.backend.EstimateGas(ctx, ethereum.CallMsg{From: d.from, To: &d.manager, Data: data})
	if err != nil {
		return nil, &DispatchError{Op: "estimate gas", Err: err}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &d.manager,
		Value:    big.NewInt(0),
		Gas:      gas + gas/5,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, d.signer, d.key)
	if err != nil {
		return nil, &DispatchError{Op: "sign", Err: err}
	}
	if err := d.backend.SendTransaction(ctx, signed); err != nil {
		return nil, &DispatchError{Op: "send", Err: err}
	}
	return signed, nil
}

func (d *ChainDispatcher) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		receipt, err := d.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close releases the RPC connection.
func (d *ChainDispatcher) Close() {
	if d.closer != nil {
		d.closer()
	}
}
