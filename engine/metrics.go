package engine

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type mutationMetrics struct {
	logger          *log.Logger
	kind            string
	boardID         string
	start           time.Time
	fetchDuration   time.Duration
	gatewayDuration time.Duration
	changed         bool
	rolledBack      bool
	invalidated     bool
	errorStage      string
}

func newMutationMetrics(logger *log.Logger, kind, boardID string) *mutationMetrics {
	return &mutationMetrics{
		logger:  logger,
		kind:    kind,
		boardID: boardID,
		start:   time.Now(),
	}
}

func (m *mutationMetrics) ObserveFetch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.fetchDuration = duration
}

func (m *mutationMetrics) ObserveGateway(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.gatewayDuration = duration
}

func (m *mutationMetrics) SetChanged(changed bool) { m.changed = changed }

func (m *mutationMetrics) SetRolledBack(rolledBack bool) { m.rolledBack = rolledBack }

func (m *mutationMetrics) SetInvalidated(invalidated bool) { m.invalidated = invalidated }

func (m *mutationMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *mutationMetrics) Log(err error) {
	if m == nil || m.logger == nil {
		return
	}

	outcome := "confirmed"
	switch {
	case err != nil:
		outcome = "failed"
	case !m.changed:
		outcome = "noop"
	}

	fields := log.Fields{
		"kind":        m.kind,
		"board_id":    m.boardID,
		"outcome":     outcome,
		"total_ms":    durationToMillis(time.Since(m.start)),
		"rolled_back": m.rolledBack,
		"invalidated": m.invalidated,
	}
	if m.fetchDuration > 0 {
		fields["fetch_ms"] = durationToMillis(m.fetchDuration)
	}
	if m.gatewayDuration > 0 {
		fields["gateway_ms"] = durationToMillis(m.gatewayDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("board.mutation.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
