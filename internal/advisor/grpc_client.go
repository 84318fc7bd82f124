package advisor

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

// Fully-qualified gRPC method names of the advisory service.
const (
	methodInitSession           = "/advisor.v1.AdvisorService/InitSession"
	methodSetContext            = "/advisor.v1.AdvisorService/SetContext"
	methodValidateConcentration = "/advisor.v1.AdvisorService/ValidateConcentration"
	methodChat                  = "/advisor.v1.AdvisorService/Chat"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errNotOK                    = errors.New("advisory service returned ok=false")
)

// GrpcClient provides a gRPC client to the advisory service.
// Requests and responses are google.protobuf.Struct messages carrying the
// same fields as the JSON API.
type GrpcClient struct {
	conn           *grpc.ClientConn
	addr           string
	requestTimeout time.Duration
	logger         *slog.Logger
}

// GrpcClientConfig holds configuration for the gRPC client.
type GrpcClientConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGrpcClientConfig returns default configuration.
func DefaultGrpcClientConfig() GrpcClientConfig {
	return GrpcClientConfig{
		Address:          "localhost:50051",
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   60 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// NewGrpcClientWithConfig creates a new gRPC client from an explicit configuration.
func NewGrpcClientWithConfig(cfg GrpcClientConfig, logger *slog.Logger) (*GrpcClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	// Build client connection (no network I/O yet).
	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to advisory service at %s: %w", cfg.Address, err)
	}

	// Force a connection attempt during startup so we fail fast on bad endpoints.
	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("advisory service at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to advisory service", "address", cfg.Address, "transport", ModeGRPC)

	return newGrpcClientFromConn(conn, cfg, logger), nil
}

func newGrpcClientFromConn(conn *grpc.ClientConn, cfg GrpcClientConfig, logger *slog.Logger) *GrpcClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrpcClient{
		conn:           conn,
		addr:           cfg.Address,
		requestTimeout: cfg.RequestTimeout,
		logger:         logger,
	}
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

// Close closes the gRPC connection.
func (c *GrpcClient) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

// InitSession announces a session to the advisory service.
func (c *GrpcClient) InitSession(ctx context.Context, sessionID string) error {
	_, err := c.invoke(ctx, methodInitSession, map[string]any{"sessionId": sessionID})
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}
	return nil
}

// SetContext commits the onboarding profile.
func (c *GrpcClient) SetContext(ctx context.Context, sessionID string, data ContextData) error {
	_, err := c.invoke(ctx, methodSetContext, map[string]any{
		"sessionId":     sessionID,
		"concentration": data.Concentration,
		"gradeLevel":    data.GradeLevel,
		"semester":      data.Semester,
	})
	if err != nil {
		return fmt.Errorf("set context: %w", err)
	}
	return nil
}

// ValidateConcentration returns the canonical concentration name.
func (c *GrpcClient) ValidateConcentration(ctx context.Context, raw string) (string, error) {
	resp, err := c.invoke(ctx, methodValidateConcentration, map[string]any{"concentration": raw})
	if err != nil {
		return "", fmt.Errorf("validate concentration: %w", err)
	}
	name := resp.GetFields()["proper_name"].GetStringValue()
	if name == "" {
		return raw, nil
	}
	return name, nil
}

// Answer asks a free-text question.
func (c *GrpcClient) Answer(ctx context.Context, sessionID, query string) (Answer, error) {
	resp, err := c.invoke(ctx, methodChat, map[string]any{
		"sessionId": sessionID,
		"message":   query,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("chat: %w", err)
	}
	return answerFromStruct(resp), nil
}

func (c *GrpcClient) invoke(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
		c.logger.Warn("Advisor gRPC call failed", "method", method, "error", err)
		return nil, err
	}

	// Services may report logical failures with ok=false instead of a status code.
	if ok, present := resp.GetFields()["ok"]; present && !ok.GetBoolValue() {
		status := resp.GetFields()["status"].GetStringValue()
		return nil, fmt.Errorf("%w: %s", errNotOK, status)
	}
	return resp, nil
}

func answerFromStruct(s *structpb.Struct) Answer {
	fields := s.GetFields()
	ans := Answer{
		Response: fields["response"].GetStringValue(),
		Intent:   fields["intent"].GetStringValue(),
		Error:    fields["error"].GetStringValue(),
	}
	for _, v := range fields["data_sources"].GetListValue().GetValues() {
		if src := v.GetStringValue(); src != "" {
			ans.DataSources = append(ans.DataSources, src)
		}
	}
	return ans
}
