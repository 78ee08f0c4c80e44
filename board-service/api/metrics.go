package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "kanban-board/board-service/api"

type boardRequestMetrics struct {
	logger        *log.Logger
	span          trace.Span
	start         time.Time
	method        string
	route         string
	boardID       string
	authDuration  time.Duration
	storeDuration time.Duration
	duplicate     bool
	errorStage    string
	err           error
}

// newBoardRequestMetrics starts a server span for the request and returns
// the context carrying it.
func newBoardRequestMetrics(ctx context.Context, logger *log.Logger, method, route string) (*boardRequestMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("http.route", route),
		),
	)
	return &boardRequestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
		method: method,
		route:  route,
	}, ctx
}

func (m *boardRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *boardRequestMetrics) ObserveStore(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.storeDuration = duration
}

func (m *boardRequestMetrics) SetBoardID(id string) {
	m.boardID = id
}

func (m *boardRequestMetrics) SetDuplicate() {
	m.duplicate = true
}

// Fail records the stage that failed and its cause.
func (m *boardRequestMetrics) Fail(stage string, err error) {
	if stage != "" {
		m.errorStage = stage
	}
	if err != nil {
		m.err = err
	}
}

func (m *boardRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	if err == nil {
		err = m.err
	}

	if m.span != nil {
		m.span.SetAttributes(attribute.Int("http.response.status_code", status))
		if m.boardID != "" {
			m.span.SetAttributes(attribute.String("board.id", m.boardID))
		}
		if err != nil {
			m.span.RecordError(err)
		}
		if status >= 500 {
			m.span.SetStatus(codes.Error, m.errorStage)
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"method":   m.method,
		"route":    m.route,
		"status":   status,
		"total_ms": durationToMillis(time.Since(m.start)),
	}
	if m.boardID != "" {
		fields["board_id"] = m.boardID
	}
	if m.authDuration > 0 {
		fields["auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.storeDuration > 0 {
		fields["store_ms"] = durationToMillis(m.storeDuration)
	}
	if m.duplicate {
		fields["duplicate"] = true
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("boards.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
