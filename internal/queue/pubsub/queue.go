// Package pubsub implements the work queue on Google Cloud Pub/Sub, letting
// producers and workers run in separate processes.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/parkmj/kbland-collector/internal/queue"
)

// Config identifies the topic and subscription backing the queue.
type Config struct {
	ProjectID    string
	TopicID      string
	Subscription string
}

// Queue is a Pub/Sub-backed work queue. Enqueue publishes to the topic;
// Dequeue pulls from the subscription through an internal channel fed by the
// streaming receiver.
type Queue struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	items  chan queue.Item
	logger *zap.Logger

	cancel  context.CancelFunc
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// New connects to Pub/Sub and verifies the topic. If cfg.Subscription is set,
// a background receiver feeds Dequeue; producers can leave it empty.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Queue, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, fmt.Errorf("pubsub queue requires project and topic")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(cfg.TopicID)
	ok, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("check topic %q: %w", cfg.TopicID, err)
	}
	if !ok {
		client.Close()
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", cfg.TopicID, cfg.ProjectID)
	}

	q := &Queue{
		client: client,
		topic:  topic,
		items:  make(chan queue.Item),
		logger: logger,
		done:   make(chan struct{}),
	}

	if cfg.Subscription == "" {
		close(q.done)
		return q, nil
	}

	sub := client.Subscription(cfg.Subscription)
	ok, err = sub.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("check subscription %q: %w", cfg.Subscription, err)
	}
	if !ok {
		client.Close()
		return nil, fmt.Errorf("pubsub subscription %q does not exist", cfg.Subscription)
	}

	recvCtx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	go q.receive(recvCtx, sub)
	return q, nil
}

func (q *Queue) receive(ctx context.Context, sub *pubsub.Subscription) {
	defer close(q.done)
	err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var item queue.Item
		if err := json.Unmarshal(msg.Data, &item); err != nil {
			q.logger.Error("discarding malformed queue message", zap.Error(err))
			msg.Ack()
			return
		}
		select {
		case q.items <- item:
			msg.Ack()
		case <-ctx.Done():
			msg.Nack()
		}
	})
	if err != nil && ctx.Err() == nil {
		q.logger.Error("pubsub receive stopped", zap.Error(err))
	}
}

// Enqueue publishes the item to the topic and waits for server acknowledgment.
func (q *Queue) Enqueue(ctx context.Context, item queue.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal queue item: %w", err)
	}
	result := q.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish queue item: %w", err)
	}
	return nil
}

// Dequeue returns the next received item, or an error when the context ends
// or the queue is closed.
func (q *Queue) Dequeue(ctx context.Context) (queue.Item, error) {
	select {
	case item, ok := <-q.items:
		if !ok {
			return queue.Item{}, queue.ErrClosed
		}
		return item, nil
	case <-ctx.Done():
		return queue.Item{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	}
}

// Close stops the receiver, flushes pending publishes, and closes the client.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	if q.cancel != nil {
		q.cancel()
	}
	<-q.done
	close(q.items)
	q.topic.Stop()
	if err := q.client.Close(); err != nil {
		q.logger.Warn("close pubsub client", zap.Error(err))
	}
}
