package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-board/board-service/storage"
	"kanban-board/domain"
	"kanban-board/gateway"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, replays ReplayGuard, notifier ChangeNotifier, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	h := &handlers{store: store, auth: auth, replays: replays, notifier: notifier, logger: logger}

	e.GET("/api/boards", h.read("/api/boards", h.listBoards))
	e.POST("/api/boards", h.mutate("/api/boards", h.createBoard))
	e.GET("/api/boards/:boardId", h.read("/api/boards/:boardId", h.fetchBoard))
	e.DELETE("/api/boards/:boardId", h.mutate("/api/boards/:boardId", h.deleteBoard))

	e.POST("/api/boards/:boardId/columns", h.mutate("/api/boards/:boardId/columns", h.createColumn))
	e.DELETE("/api/boards/:boardId/columns/:columnId", h.mutate("/api/boards/:boardId/columns/:columnId", h.deleteColumn))

	e.POST("/api/boards/:boardId/columns/:columnId/tasks", h.mutate("/api/boards/:boardId/columns/:columnId/tasks", h.createTask))
	e.PATCH("/api/boards/:boardId/tasks/:taskId", h.mutate("/api/boards/:boardId/tasks/:taskId", h.updateTask))
	e.DELETE("/api/boards/:boardId/tasks/:taskId", h.mutate("/api/boards/:boardId/tasks/:taskId", h.deleteTask))
	e.PUT("/api/boards/:boardId/columns/:columnId/tasks/:taskId/position", h.mutate("/api/boards/:boardId/columns/:columnId/tasks/:taskId/position", h.reorderTask))
	e.POST("/api/boards/:boardId/tasks/:taskId/move", h.mutate("/api/boards/:boardId/tasks/:taskId/move", h.moveTask))

	e.POST("/api/boards/:boardId/tasks/:taskId/subtasks", h.mutate("/api/boards/:boardId/tasks/:taskId/subtasks", h.createSubtask))
	e.PATCH("/api/boards/:boardId/tasks/:taskId/subtasks/:subtaskId", h.mutate("/api/boards/:boardId/tasks/:taskId/subtasks/:subtaskId", h.updateSubtask))
	e.DELETE("/api/boards/:boardId/tasks/:taskId/subtasks/:subtaskId", h.mutate("/api/boards/:boardId/tasks/:taskId/subtasks/:subtaskId", h.deleteSubtask))

	e.GET("/healthz", healthz)
}

type handlers struct {
	store    Storage
	auth     Authenticator
	replays  ReplayGuard
	notifier ChangeNotifier
	logger   *log.Logger
}

// result is what a mutation produced. A zero Status means 204.
type result struct {
	Status  int
	Body    any
	BoardID string
	Change  string
}

type readFunc func(c echo.Context, userID string) (any, error)

type mutateFunc func(c echo.Context, userID string) (result, error)

// requestError marks a failure caused by the request itself rather than the
// store.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *handlers) authenticate(c echo.Context, metrics *boardRequestMetrics) (string, bool) {
	start := time.Now()
	userID, err := h.auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	metrics.ObserveAuth(time.Since(start))
	if err != nil {
		metrics.Fail("auth", err)
		return "", false
	}
	return userID, true
}

func (h *handlers) read(route string, fn readFunc) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newBoardRequestMetrics(c.Request().Context(), h.logger, c.Request().Method, route)
		c.SetRequest(c.Request().WithContext(ctx))
		metrics.SetBoardID(c.Param("boardId"))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		userID, ok := h.authenticate(c, metrics)
		if !ok {
			return c.String(http.StatusUnauthorized, "unauthorized")
		}

		start := time.Now()
		body, fnErr := fn(c, userID)
		metrics.ObserveStore(time.Since(start))
		if fnErr != nil {
			return h.fail(c, metrics, fnErr)
		}
		return c.JSON(http.StatusOK, body)
	}
}

// mutate runs fn once per idempotency key and announces the change on
// success.
func (h *handlers) mutate(route string, fn mutateFunc) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newBoardRequestMetrics(c.Request().Context(), h.logger, c.Request().Method, route)
		c.SetRequest(c.Request().WithContext(ctx))
		metrics.SetBoardID(c.Param("boardId"))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		userID, ok := h.authenticate(c, metrics)
		if !ok {
			return c.String(http.StatusUnauthorized, "unauthorized")
		}

		key := strings.TrimSpace(c.Request().Header.Get(gateway.HeaderIdempotencyKey))
		if key != "" && h.replays != nil {
			claimed, cerr := h.replays.Claim(ctx, userID, key)
			if cerr != nil {
				metrics.Fail("idempotency", cerr)
				return c.String(http.StatusServiceUnavailable, "idempotency store unavailable")
			}
			if !claimed {
				metrics.SetDuplicate()
				return c.String(http.StatusConflict, "duplicate request")
			}
		}

		start := time.Now()
		res, fnErr := fn(c, userID)
		metrics.ObserveStore(time.Since(start))
		if fnErr != nil {
			if key != "" && h.replays != nil {
				if rerr := h.replays.Release(ctx, userID, key); rerr != nil {
					h.logger.WithError(rerr).WithFields(log.Fields{"key": key, "user": userID}).Error("release idempotency key failed")
				}
			}
			return h.fail(c, metrics, fnErr)
		}

		if res.BoardID != "" {
			metrics.SetBoardID(res.BoardID)
		}
		if h.notifier != nil && res.BoardID != "" {
			change := res.Change
			if change == "" {
				change = domain.BoardUpdated
			}
			h.notifier.Notify(domain.BoardChange{
				Type:     change,
				BoardID:  res.BoardID,
				ActorID:  userID,
				ClientID: c.Request().Header.Get(gateway.HeaderClientID),
			})
		}

		if res.Status == 0 {
			return c.NoContent(http.StatusNoContent)
		}
		return c.JSON(res.Status, res.Body)
	}
}

func (h *handlers) fail(c echo.Context, metrics *boardRequestMetrics, err error) error {
	status := statusFor(err)
	stage := "storage"
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		stage = "request"
	}
	metrics.Fail(stage, err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("route", c.Path()).Error("request failed")
		return c.String(status, "internal error")
	}
	return c.String(status, err.Error())
}

func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, storage.ErrInvalid), errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid body")
	}
	return nil
}

func (h *handlers) listBoards(c echo.Context, userID string) (any, error) {
	boards, err := h.store.ListBoards(c.Request().Context(), userID)
	if err != nil {
		return nil, err
	}
	if boards == nil {
		boards = []domain.BoardSummary{}
	}
	return boardsResponse{Boards: boards}, nil
}

func (h *handlers) fetchBoard(c echo.Context, userID string) (any, error) {
	return h.store.FetchBoard(c.Request().Context(), userID, c.Param("boardId"))
}

func (h *handlers) createBoard(c echo.Context, userID string) (result, error) {
	var req nameRequest
	if err := decodeBody(c, &req); err != nil {
		return result{}, err
	}
	b, err := h.store.CreateBoard(c.Request().Context(), userID, req.Name)
	if err != nil {
		return result{}, err
	}
	return result{Status: http.StatusCreated, Body: b, BoardID: b.ID}, nil
}

func (h *handlers) deleteBoard(c echo.Context, userID string) (result, error) {
	boardID := c.Param("boardId")
	if err := h.store.DeleteBoard(c.Request().Context(), userID, boardID); err != nil {
		return result{}, err
	}
	return result{BoardID: boardID, Change: domain.BoardDeleted}, nil
}

func (h *handlers) createColumn(c echo.Context, userID string) (result, error) {
	var req nameRequest
	if err := decodeBody(c, &req); err != nil {
		return result{}, err
	}
	boardID := c.Param("boardId")
	col, err := h.store.CreateColumn(c.Request().Context(), userID, boardID, req.Name)
	if err != nil {
		return result{}, err
	}
	return result{Status: http.StatusCreated, Body: col, BoardID: boardID}, nil
}

func (h *handlers) deleteColumn(c echo.Context, userID string) (result, error) {
	boardID := c.Param("boardId")
	if err := h.store.DeleteColumn(c.Request().Context(), userID, boardID, c.Param("columnId")); err != nil {
		return result{}, err
	}
	return result{BoardID: boardID}, nil
}

func (h *handlers) createTask(c echo.Context, userID string) (result, error) {
	var in gateway.TaskInput
	if err := decodeBody(c, &in); err != nil {
		return result{}, err
	}
	boardID := c.Param("boardId")
	task, err := h.store.CreateTask(c.Request().Context(), userID, boardID, c.Param("columnId"), in)
	if err != nil {
		return result{}, err
	}
	return result{Status: http.StatusCreated, Body: task, BoardID: boardID}, nil
}

func (h *handlers) updateTask(c echo.Context, userID string) (result, error) {
	var patch gateway.TaskPatch
	if err := decodeBody(c, &patch); err != nil {
		return result{}, err
	}
	if patch.Empty() {
		return result{}, badRequest("empty patch")
	}
	boardID := c.Param("boardId")
	task, err := h.store.UpdateTask(c.Request().Context(), userID, boardID, c.Param("taskId"), patch)
	if err != nil {
		return result{}, err
	}
	return result{Status: http.StatusOK, Body: task, BoardID: boardID}, nil
}

func (h *handlers) deleteTask(c echo.Context, userID string) (result, error) {
	boardID := c.Param("boardId")
	if err := h.store.DeleteTask(c.Request().Context(), userID, boardID, c.Param("taskId")); err != nil {
		return result{}, err
	}
	return result{BoardID: boardID}, nil
}

func (h *handlers) reorderTask(c echo.Context, userID string) (result, error) {
	var req positionRequest
	if err := decodeBody(c, &req); err != nil {
		return result{}, err
	}
	if req.Position == nil || *req.Position < 0 {
		return result{}, badRequest("position must be a non-negative integer")
	}
	boardID := c.Param("boardId")
	task, err := h.store.ReorderTask(c.Request().Context(), userID, boardID, c.Param("columnId"), c.Param("taskId"), *req.Position)
	if err != nil {
		return result{}, err
	}
	return result{Status: http.StatusOK, Body: task, BoardID: boardID}, nil
}

func (h *handlers) moveTask(c echo.Context, userID string) (result, error) {
	var req moveRequest
	if err := decodeBody(c, &req); err != nil {
		return result{}, err
	}
	if req.SourceColumnID == "" || req.TargetColumnID == "" {
		return result{}, badRequest("sourceColumnId and targetColumnId are required")
	}
	boardID := c.Param("boardId")
	task, err := h.store.MoveTask(c.Request().Context(), userID, boardID, req.SourceColumnID, req.TargetColumnID, c.Param("taskId"))
	if err != nil {
		return result{}, err
	}
	return result{Status: http.StatusOK, Body: task, BoardID: boardID}, nil
}

func (h *handlers) createSubtask(c echo.Context, userID string) (result, error) {
	var in gateway.TaskInput
	if err := decodeBody(c, &in); err != nil {
		return result{}, err
	}
	boardID := c.Param("boardId")
	st, err := h.store.CreateSubtask(c.Request().Context(), userID, boardID, c.Param("taskId"), in)
	if err != nil {
		return result{}, err
	}
	return result{Status: http.StatusCreated, Body: st, BoardID: boardID}, nil
}

func (h *handlers) updateSubtask(c echo.Context, userID string) (result, error) {
	var patch gateway.SubtaskPatch
	if err := decodeBody(c, &patch); err != nil {
		return result{}, err
	}
	if patch.Empty() {
		return result{}, badRequest("empty patch")
	}
	boardID := c.Param("boardId")
	st, err := h.store.UpdateSubtask(c.Request().Context(), userID, boardID, c.Param("taskId"), c.Param("subtaskId"), patch)
	if err != nil {
		return result{}, err
	}
	return result{Status: http.StatusOK, Body: st, BoardID: boardID}, nil
}

func (h *handlers) deleteSubtask(c echo.Context, userID string) (result, error) {
	boardID := c.Param("boardId")
	if err := h.store.DeleteSubtask(c.Request().Context(), userID, boardID, c.Param("taskId"), c.Param("subtaskId")); err != nil {
		return result{}, err
	}
	return result{BoardID: boardID}, nil
}
