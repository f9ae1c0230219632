package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"voxscene/pkg/protocol"
)

const scopeName = "voxscene/internal/backend"

var tracer = otel.Tracer(scopeName)

// TransportError covers every failed round trip. StatusCode is 0 when no
// HTTP response was received.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend status %d: %v", e.StatusCode, e.Err)
	}
	return "backend transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Result is the outcome of one exchange. Body is set only when OK.
type Result struct {
	OK         bool
	Body       string
	StatusCode int
	Err        error
}

type Gateway struct {
	endpoint string
	client   *http.Client
}

func NewGateway(endpoint string, client *http.Client) (*Gateway, error) {
	if endpoint == "" {
		return nil, errors.New("backend endpoint is empty")
	}
	if client == nil {
		var err error
		if client, err = NewHTTPClient("", 0); err != nil {
			return nil, err
		}
	}
	return &Gateway{endpoint: endpoint, client: client}, nil
}

func (g *Gateway) Endpoint() string { return g.endpoint }

// Send posts env and waits for the reply. It never panics or returns an
// error value directly; failures are reported through Result.
func (g *Gateway) Send(ctx context.Context, env protocol.Envelope) (res Result) {
	requestID := uuid.NewString()

	ctx, span := tracer.Start(ctx, "backend send")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", requestID))

	defer func() {
		if r := recover(); r != nil {
			res = failure(0, fmt.Errorf("panic during exchange: %v", r))
		}
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
	}()

	body, err := env.Marshal()
	if err != nil {
		return failure(0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	log.Debug("Sending envelope", "url", g.endpoint, "request_id", requestID, "bytes", len(body))

	resp, err := g.client.Do(req)
	if err != nil {
		return failure(0, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("Backend returned non-2xx", "status", resp.StatusCode, "request_id", requestID, "body", truncate(string(respBody), 256))
		return failure(resp.StatusCode, fmt.Errorf("non-2xx HTTP status: %s", resp.Status))
	}
	if err != nil {
		return failure(resp.StatusCode, fmt.Errorf("read response body: %w", err))
	}

	log.Debug("Backend replied", "status", resp.StatusCode, "request_id", requestID, "bytes", len(respBody))

	return Result{OK: true, Body: string(respBody), StatusCode: resp.StatusCode}
}

func failure(status int, err error) Result {
	return Result{StatusCode: status, Err: &TransportError{StatusCode: status, Err: err}}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
