package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kanban-board/domain"
)

const (
	// HeaderClientID identifies the session that issued a request so push
	// events caused by it can be recognised.
	HeaderClientID = "X-Client-Id"
	// HeaderIdempotencyKey deduplicates retried mutations on the backend.
	HeaderIdempotencyKey = "Idempotency-Key"

	tracerName = "kanban-board/gateway"
)

// HTTPGateway is a Gateway speaking the board REST API.
type HTTPGateway struct {
	BaseURL    string
	ClientID   string
	Tokens     TokenSource
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *log.Logger
	Tracer     trace.Tracer
}

// NewHTTP creates a gateway with sane defaults.
func NewHTTP(baseURL string, tokens TokenSource) *HTTPGateway {
	return &HTTPGateway{
		BaseURL:  baseURL,
		ClientID: uuid.NewString(),
		Tokens:   tokens,
		Timeout:  10 * time.Second,
	}
}

type boardsResponse struct {
	Boards []domain.BoardSummary `json:"boards"`
}

func (g *HTTPGateway) ListBoards(ctx context.Context) ([]domain.BoardSummary, error) {
	var resp boardsResponse
	if err := g.do(ctx, "list boards", http.MethodGet, "api/boards", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Boards == nil {
		resp.Boards = []domain.BoardSummary{}
	}
	return resp.Boards, nil
}

func (g *HTTPGateway) FetchBoard(ctx context.Context, boardID string) (*domain.Board, error) {
	var resp domain.Board
	if err := g.do(ctx, "fetch board", http.MethodGet, boardPath(boardID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *HTTPGateway) CreateBoard(ctx context.Context, name string) (*domain.Board, error) {
	var resp domain.Board
	body := map[string]any{"name": name}
	if err := g.do(ctx, "create board", http.MethodPost, "api/boards", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *HTTPGateway) DeleteBoard(ctx context.Context, boardID string) error {
	return g.do(ctx, "delete board", http.MethodDelete, boardPath(boardID), nil, nil)
}

func (g *HTTPGateway) CreateColumn(ctx context.Context, boardID, name string) (domain.Column, error) {
	var resp domain.Column
	body := map[string]any{"name": name}
	err := g.do(ctx, "create column", http.MethodPost, boardPath(boardID, "columns"), body, &resp)
	return resp, err
}

func (g *HTTPGateway) DeleteColumn(ctx context.Context, boardID, columnID string) error {
	return g.do(ctx, "delete column", http.MethodDelete, boardPath(boardID, "columns", columnID), nil, nil)
}

func (g *HTTPGateway) CreateTask(ctx context.Context, boardID, columnID string, in TaskInput) (domain.Task, error) {
	var resp domain.Task
	err := g.do(ctx, "create task", http.MethodPost, boardPath(boardID, "columns", columnID, "tasks"), in, &resp)
	return resp, err
}

func (g *HTTPGateway) UpdateTask(ctx context.Context, boardID, taskID string, patch TaskPatch) (domain.Task, error) {
	var resp domain.Task
	err := g.do(ctx, "update task", http.MethodPatch, boardPath(boardID, "tasks", taskID), patch, &resp)
	return resp, err
}

func (g *HTTPGateway) DeleteTask(ctx context.Context, boardID, taskID string) error {
	return g.do(ctx, "delete task", http.MethodDelete, boardPath(boardID, "tasks", taskID), nil, nil)
}

func (g *HTTPGateway) ReorderTask(ctx context.Context, boardID, columnID, taskID string, newPosition int) (domain.Task, error) {
	var resp domain.Task
	body := map[string]any{"position": newPosition}
	err := g.do(ctx, "reorder task", http.MethodPut, boardPath(boardID, "columns", columnID, "tasks", taskID, "position"), body, &resp)
	return resp, err
}

func (g *HTTPGateway) MoveTask(ctx context.Context, boardID, sourceColumnID, taskID, targetColumnID string) (domain.Task, error) {
	var resp domain.Task
	body := map[string]any{
		"sourceColumnId": sourceColumnID,
		"targetColumnId": targetColumnID,
	}
	err := g.do(ctx, "move task", http.MethodPost, boardPath(boardID, "tasks", taskID, "move"), body, &resp)
	return resp, err
}

func (g *HTTPGateway) CreateSubtask(ctx context.Context, boardID, taskID string, in TaskInput) (domain.Subtask, error) {
	var resp domain.Subtask
	err := g.do(ctx, "create subtask", http.MethodPost, boardPath(boardID, "tasks", taskID, "subtasks"), in, &resp)
	return resp, err
}

func (g *HTTPGateway) UpdateSubtask(ctx context.Context, boardID, taskID, subtaskID string, patch SubtaskPatch) (domain.Subtask, error) {
	var resp domain.Subtask
	err := g.do(ctx, "update subtask", http.MethodPatch, boardPath(boardID, "tasks", taskID, "subtasks", subtaskID), patch, &resp)
	return resp, err
}

func (g *HTTPGateway) DeleteSubtask(ctx context.Context, boardID, taskID, subtaskID string) error {
	return g.do(ctx, "delete subtask", http.MethodDelete, boardPath(boardID, "tasks", taskID, "subtasks", subtaskID), nil, nil)
}

func (g *HTTPGateway) do(ctx context.Context, op, method, endpoint string, body any, out any) (err error) {
	ctx, span := g.tracer().Start(ctx, "gateway."+strings.ReplaceAll(op, " ", "_"), trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", "/"+endpoint),
	)
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		g.logger().WithFields(log.Fields{
			"op":       op,
			"method":   method,
			"path":     "/" + endpoint,
			"total_ms": float64(time.Since(start)) / float64(time.Millisecond),
		}).WithError(err).Debug("gateway.call")
	}()

	var buf bytes.Buffer
	if body != nil {
		payload, merr := sonic.ConfigStd.Marshal(body)
		if merr != nil {
			return classify(op, fmt.Errorf("encode request: %w", merr))
		}
		buf.Write(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base()+"/"+endpoint, &buf)
	if err != nil {
		return classify(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.ClientID != "" {
		req.Header.Set(HeaderClientID, g.ClientID)
	}
	if method != http.MethodGet {
		key := uuid.NewString()
		req.Header.Set(HeaderIdempotencyKey, key)
		span.SetAttributes(attribute.String("idempotency.key", key))
	}
	if g.Tokens != nil {
		token, terr := g.Tokens.Token(ctx)
		if terr != nil {
			return &domain.ValidationError{Op: op, Reason: "no credential", Err: terr}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := g.client().Do(req)
	if err != nil {
		return classify(op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return classify(op, &APIError{StatusCode: resp.StatusCode, Body: string(b)})
	}
	if out != nil {
		if derr := sonic.ConfigStd.NewDecoder(resp.Body).Decode(out); derr != nil {
			return classify(op, fmt.Errorf("decode response: %w", derr))
		}
	}
	return nil
}

// client never writes back to g; one gateway is shared by concurrent calls.
func (g *HTTPGateway) client() *http.Client {
	if g.HTTPClient != nil {
		return g.HTTPClient
	}
	return &http.Client{Timeout: g.Timeout}
}

func (g *HTTPGateway) tracer() trace.Tracer {
	if g.Tracer != nil {
		return g.Tracer
	}
	return otel.Tracer(tracerName)
}

func (g *HTTPGateway) logger() *log.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return log.StandardLogger()
}

func (g *HTTPGateway) base() string {
	return strings.TrimRight(g.BaseURL, "/")
}

func boardPath(boardID string, parts ...string) string {
	segs := make([]string, 0, len(parts)+3)
	segs = append(segs, "api", "boards", url.PathEscape(boardID))
	for _, p := range parts {
		segs = append(segs, url.PathEscape(p))
	}
	return strings.Join(segs, "/")
}
