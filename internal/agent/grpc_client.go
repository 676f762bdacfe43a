package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// respondMethod is the unary RPC exposed by the remote agent service. Request
// and response are google.protobuf.Struct messages.
const respondMethod = "/sphinx.v1.Responder/Respond"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errRemoteResponder          = errors.New("remote responder returned error")
)

// GrpcResponder delegates replies to a remote agent service over gRPC.
type GrpcResponder struct {
	conn   *grpc.ClientConn
	addr   string
	logger *slog.Logger
}

// GrpcClientConfig holds configuration for the gRPC client.
type GrpcClientConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGrpcClientConfig returns default configuration.
func DefaultGrpcClientConfig() GrpcClientConfig {
	return GrpcClientConfig{
		Address:          "localhost:50051",
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// NewGrpcResponder connects to the agent service at addr and waits until the
// connection is ready, so a bad endpoint fails at startup.
func NewGrpcResponder(addr string, logger *slog.Logger) (*GrpcResponder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := DefaultGrpcClientConfig()
	if addr != "" {
		cfg.Address = addr
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to agent at %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("agent at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to agent service", "address", cfg.Address)
	return newGrpcResponder(conn, cfg.Address, logger), nil
}

func newGrpcResponder(conn *grpc.ClientConn, addr string, logger *slog.Logger) *GrpcResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrpcResponder{conn: conn, addr: addr, logger: logger}
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Respond implements Responder.
func (c *GrpcResponder) Respond(ctx context.Context, p Prompt) (string, error) {
	req, err := structpb.NewStruct(map[string]any{
		"user_id":            p.UserID,
		"message":            p.Message,
		"attempts_remaining": p.AttemptsRemaining,
		"hint_cursor":        p.HintCursor,
		"outcome":            string(p.Outcome),
	})
	if err != nil {
		return "", fmt.Errorf("build respond request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, respondMethod, req, resp); err != nil {
		c.logger.Error("Respond RPC failed", "error", err, "user_id", p.UserID, "address", c.addr)
		return "", fmt.Errorf("respond request failed: %w", err)
	}

	fields := resp.GetFields()
	if msg := fields["error"].GetStringValue(); msg != "" {
		return "", fmt.Errorf("%w: %s", errRemoteResponder, msg)
	}
	return fields["text"].GetStringValue(), nil
}

// Close closes the gRPC connection.
func (c *GrpcResponder) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}
