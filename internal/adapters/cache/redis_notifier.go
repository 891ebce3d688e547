package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/suggestbox/internal/ports"
)

const channelPrefix = "suggestbox:changes:"

var _ ports.ChangeNotifier = (*RedisNotifier)(nil)

// RedisNotifier fans collection-change signals out over Redis pub/sub. Every
// subscriber of a path, across every process, receives one signal per
// published change and re-materializes the collection itself.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func channelFor(path string) string {
	return channelPrefix + path
}

func (n *RedisNotifier) Publish(ctx context.Context, path string, payload []byte) error {
	if err := n.client.Publish(ctx, channelFor(path), payload).Err(); err != nil {
		return fmt.Errorf("publish change signal: %w", err)
	}
	return nil
}

// Watch subscribes to the path's change channel. Signals stop after release
// is called; an unexpected channel shutdown is reported once on errs.
func (n *RedisNotifier) Watch(ctx context.Context, path string) (<-chan []byte, <-chan error, func(), error) {
	pubsub := n.client.Subscribe(ctx, channelFor(path))
	// Force the SUBSCRIBE round-trip so a dead broker fails here, not on
	// the first missed notification.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, nil, fmt.Errorf("subscribe %s: %w", channelFor(path), err)
	}

	signals := make(chan []byte)
	errs := make(chan error, 1)
	var releaseOnce sync.Once
	released := make(chan struct{})
	release := func() {
		releaseOnce.Do(func() {
			close(released)
			_ = pubsub.Close()
		})
	}

	go func() {
		defer close(signals)
		messages := pubsub.Channel()
		for {
			select {
			case msg, ok := <-messages:
				if !ok {
					select {
					case <-released:
						// Normal teardown, not a stream failure.
					default:
						errs <- fmt.Errorf("change channel closed: %s", channelFor(path))
					}
					return
				}
				select {
				case signals <- []byte(msg.Payload):
				case <-released:
					return
				case <-ctx.Done():
					return
				}
			case <-released:
				return
			case <-ctx.Done():
				release()
				return
			}
		}
	}()

	return signals, errs, release, nil
}
