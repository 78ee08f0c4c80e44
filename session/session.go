// Package session wires one signed-in actor's cache, engine and push
// subscription together and tears them down at logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"kanban-board/cache"
	"kanban-board/config"
	"kanban-board/dnd"
	"kanban-board/domain"
	"kanban-board/engine"
	"kanban-board/gateway"
	"kanban-board/subscription"
	"kanban-board/view"
)

// ErrClosed is returned by operations on a session after Logout.
var ErrClosed = errors.New("session closed")

// ActorFromToken reads the subject and role claims of a bearer token. The
// signature is not checked here; the backend verifies it on every request.
func ActorFromToken(token string) (domain.Actor, error) {
	const op = "session"
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return domain.Actor{}, domain.Validationf(op, "missing credential")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return domain.Actor{}, &domain.ValidationError{Op: op, Reason: "malformed credential", Err: err}
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return domain.Actor{}, domain.Validationf(op, "credential has no subject")
	}
	role, _ := claims["role"].(string)
	return domain.Actor{ID: sub, Role: domain.ParseRole(role)}, nil
}

// Session is the composition root for one actor.
type Session struct {
	actor    domain.Actor
	gateway  *gateway.HTTPGateway
	cache    *cache.Boards
	engine   *engine.Engine
	composer *view.Composer
	logger   *log.Logger

	mu     sync.Mutex
	closed bool
	rc     *redis.Client
	cancel context.CancelFunc
	done   chan struct{}
}

// OpenFromEnv opens a session configured from the process environment.
func OpenFromEnv(ctx context.Context, token string, logger *log.Logger) (*Session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return Open(ctx, cfg, token, logger)
}

// Open starts a session for the holder of token. When cfg names a Redis
// connection the session subscribes to board changes until Logout.
func Open(ctx context.Context, cfg config.Client, token string, logger *log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	actor, err := ActorFromToken(token)
	if err != nil {
		return nil, err
	}

	gw := gateway.NewHTTP(cfg.APIURL, gateway.StaticToken(strings.TrimPrefix(strings.TrimSpace(token), "Bearer ")))
	gw.Timeout = cfg.Timeout
	gw.Logger = logger

	boards := cache.NewBoards(gw, logger)
	s := &Session{
		actor:   actor,
		gateway: gw,
		cache:   boards,
		engine: engine.New(gw, boards, actor, engine.Options{
			AlwaysRefetch: cfg.AlwaysRefetch,
			Quotas:        cfg.Quotas,
			Logger:        logger,
		}),
		composer: view.NewComposer(nil),
		logger:   logger,
	}

	if cfg.RedisConnectionString != "" {
		opts, err := config.RedisOptions(cfg.RedisConnectionString)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		s.rc = redis.NewClient(opts)
		sub := subscription.New(s.rc, cfg.UpdatesChannel, gw.ClientID, boards, logger)

		subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s.cancel = cancel
		s.done = make(chan struct{})
		ready := make(chan struct{})
		go func() {
			defer close(s.done)
			sub.Run(subCtx, ready)
		}()
		wait, stopWait := ctx, context.CancelFunc(func() {})
		if cfg.Timeout > 0 {
			wait, stopWait = context.WithTimeout(ctx, cfg.Timeout)
		}
		defer stopWait()
		select {
		case <-ready:
		case <-wait.Done():
			s.Logout()
			return nil, fmt.Errorf("subscribe board updates: %w", wait.Err())
		}
	}

	logger.WithFields(log.Fields{"actor_id": actor.ID, "role": actor.Role, "client_id": gw.ClientID}).Info("session opened")
	return s, nil
}

func (s *Session) Actor() domain.Actor { return s.actor }

// ClientID identifies this session's requests to the backend.
func (s *Session) ClientID() string { return s.gateway.ClientID }

// Engine returns the mutation engine, or nil after Logout.
func (s *Session) Engine() *engine.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.engine
}

// Adapter returns a drag-and-drop adapter bound to boardID. After Logout
// every drop fails with ErrClosed.
func (s *Session) Adapter(boardID string) *dnd.Adapter {
	if s.isClosed() {
		return dnd.NewAdapter(boardID, closedMover{}, nil)
	}
	return dnd.NewAdapter(boardID, s.engine, s.cache.Board)
}

type closedMover struct{}

func (closedMover) ReorderWithinColumn(context.Context, string, string, string, int) error {
	return ErrClosed
}

func (closedMover) MoveAcrossColumns(context.Context, string, string, string, string) error {
	return ErrClosed
}

// View loads a board and composes it for rendering.
func (s *Session) View(ctx context.Context, boardID string) (view.BoardView, error) {
	if s.isClosed() {
		return view.BoardView{}, ErrClosed
	}
	b, err := s.engine.Board(ctx, boardID)
	if err != nil {
		return view.BoardView{}, err
	}
	return s.composer.Compose(b), nil
}

// Logout stops the subscription and drops every cached board.
func (s *Session) Logout() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel, done, rc := s.cancel, s.done, s.rc
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if rc != nil {
		_ = rc.Close()
	}
	cached := s.cache.Board.Len()
	s.cache.Clear()
	s.logger.WithFields(log.Fields{"actor_id": s.actor.ID, "cached_boards": cached}).Info("session closed")
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
