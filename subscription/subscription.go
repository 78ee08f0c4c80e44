// Package subscription keeps a session cache in step with changes made by
// other sessions, delivered over Redis pub/sub.
package subscription

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"kanban-board/domain"
)

// Invalidator is the part of the board cache the subscriber drives.
type Invalidator interface {
	InvalidateBoard(boardID string)
	EvictBoard(boardID string)
}

// Subscriber listens for board changes and marks affected cache entries stale.
type Subscriber struct {
	rc       *redis.Client
	channel  string
	clientID string
	cache    Invalidator
	logger   *log.Logger

	// ReconnectDelay is how long to wait before resubscribing after the
	// pub/sub channel closes.
	ReconnectDelay time.Duration
}

func New(rc *redis.Client, channel, clientID string, cache Invalidator, logger *log.Logger) *Subscriber {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Subscriber{
		rc:             rc,
		channel:        channel,
		clientID:       clientID,
		cache:          cache,
		logger:         logger,
		ReconnectDelay: time.Second,
	}
}

// Run blocks until ctx is done, resubscribing whenever the channel closes.
// ready, when non-nil, is closed once the first subscription is confirmed.
func (s *Subscriber) Run(ctx context.Context, ready chan<- struct{}) {
	for {
		sub := s.rc.Subscribe(ctx, s.channel)
		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()
			if ctx.Err() != nil {
				return
			}
			s.logger.WithError(err).WithField("channel", s.channel).Error("subscribe board updates")
			if !s.wait(ctx) {
				return
			}
			continue
		}
		if ready != nil {
			close(ready)
			ready = nil
		}
		s.consume(ctx, sub.Channel())
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		s.logger.WithField("channel", s.channel).Error("pubsub channel closed, reconnecting")
		if !s.wait(ctx) {
			return
		}
	}
}

func (s *Subscriber) consume(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev domain.BoardChange
			if err := sonic.UnmarshalString(msg.Payload, &ev); err != nil {
				s.logger.WithError(err).Error("unable to parse board change")
				continue
			}
			s.Handle(ev)
		}
	}
}

// Handle applies one change to the cache. Changes made by this session are
// ignored because the cache already reflects them.
func (s *Subscriber) Handle(ev domain.BoardChange) {
	if ev.BoardID == "" || (s.clientID != "" && ev.ClientID == s.clientID) {
		return
	}
	switch ev.Type {
	case domain.BoardDeleted:
		s.cache.EvictBoard(ev.BoardID)
	case domain.BoardUpdated:
		s.cache.InvalidateBoard(ev.BoardID)
	default:
		s.logger.WithField("type", ev.Type).Warn("unknown board change")
		return
	}
	s.logger.WithFields(log.Fields{"board_id": ev.BoardID, "type": ev.Type}).Debug("board change applied")
}

func (s *Subscriber) wait(ctx context.Context) bool {
	t := time.NewTimer(s.ReconnectDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
