package api

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"kanban-board/domain"
)

// Publisher delivers one board change to subscribers.
type Publisher interface {
	Publish(ctx context.Context, change domain.BoardChange) error
}

// RedisPublisher publishes board changes as JSON on a pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, change domain.BoardChange) error {
	payload, err := sonic.MarshalString(change)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

// NotifierOptions sizes the notifier's worker pool.
type NotifierOptions struct {
	Workers int
	Buffer  int
	// PublishTimeout bounds a single publish.
	PublishTimeout time.Duration
	// HandoffTimeout is how long Notify waits for buffer space before
	// publishing inline.
	HandoffTimeout time.Duration
}

// Notifier hands board changes to a pool of publishing workers so request
// handlers never wait on Redis unless the buffer is saturated.
type Notifier struct {
	pub    Publisher
	logger *log.Logger
	opts   NotifierOptions

	mu     sync.RWMutex
	closed bool
	jobs   chan domain.BoardChange
	wg     sync.WaitGroup
}

func NewNotifier(pub Publisher, opts NotifierOptions, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Buffer < 0 {
		opts.Buffer = 0
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}
	n := &Notifier{
		pub:    pub,
		logger: logger,
		opts:   opts,
		jobs:   make(chan domain.BoardChange, opts.Buffer),
	}
	for i := 0; i < opts.Workers; i++ {
		n.wg.Add(1)
		go n.worker(i)
	}
	logger.Infof("change notifier started, workers: %d, buffer: %d, timeout: %v, handoff: %v",
		opts.Workers, opts.Buffer, opts.PublishTimeout, opts.HandoffTimeout)
	return n
}

func (n *Notifier) worker(id int) {
	defer n.wg.Done()
	for change := range n.jobs {
		n.publish(change, id)
	}
}

func (n *Notifier) publish(change domain.BoardChange, worker int) {
	ctx, cancel := context.WithTimeout(context.Background(), n.opts.PublishTimeout)
	defer cancel()
	if err := n.pub.Publish(ctx, change); err != nil {
		n.logger.WithError(err).WithFields(log.Fields{
			"board_id": change.BoardID,
			"type":     change.Type,
			"worker":   worker,
		}).Error("publish board change failed")
	}
}

// Notify queues change for publishing. When the buffer stays full for the
// handoff timeout the change is published on the caller's goroutine.
func (n *Notifier) Notify(change domain.BoardChange) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.logger.WithField("board_id", change.BoardID).Warn("notifier closed; dropping board change")
		return
	}

	select {
	case n.jobs <- change:
		return
	default:
	}

	if n.opts.HandoffTimeout > 0 {
		timer := time.NewTimer(n.opts.HandoffTimeout)
		defer timer.Stop()
		select {
		case n.jobs <- change:
			return
		case <-timer.C:
		}
	}

	n.logger.Warn("notify buffer saturated; publishing inline")
	n.publish(change, -1)
}

// Close stops accepting changes and waits for queued ones to be published.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.jobs)
	n.mu.Unlock()
	n.wg.Wait()
}
