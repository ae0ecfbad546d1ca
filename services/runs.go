package services

import (
	"context"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"noshow-prediction-api/metrics"
	"noshow-prediction-api/models"
)

// RunFeed distributes RunEvents to live subscribers. With Redis available
// events go through pub/sub so every API replica sees every run; otherwise
// they are fanned out in process.
type RunFeed struct {
	cache   *CacheService
	channel string

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

const subscriberBuffer = 16

func NewRunFeed(cache *CacheService, channel string) *RunFeed {
	return &RunFeed{cache: cache, channel: channel, subs: make(map[chan []byte]struct{})}
}

// Publish never fails the caller's request; errors are logged.
func (f *RunFeed) Publish(ctx context.Context, ev models.RunEvent) {
	if f.cache.Available() {
		if err := f.cache.Publish(ctx, f.channel, ev); err != nil {
			log.Warn().Err(err).Str("run_id", ev.RunID).Msg("publish run event failed")
			return
		}
		metrics.RunEventsPublished.WithLabelValues("redis").Inc()
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Warn().Err(err).Str("run_id", ev.RunID).Msg("encode run event failed")
		return
	}
	f.mu.Lock()
	for ch := range f.subs {
		select {
		case ch <- data:
		default:
			// slow subscriber, drop
		}
	}
	f.mu.Unlock()
	metrics.RunEventsPublished.WithLabelValues("local").Inc()
}

// Subscribe returns a channel of JSON-encoded events that is closed when ctx
// is done.
func (f *RunFeed) Subscribe(ctx context.Context) <-chan []byte {
	out := make(chan []byte, subscriberBuffer)

	if f.cache.Available() {
		pubsub := f.cache.Subscribe(ctx, f.channel)
		go func() {
			defer close(out)
			defer pubsub.Close()
			ch := pubsub.Channel()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						return
					}
					select {
					case out <- []byte(msg.Payload):
					default:
					}
				}
			}
		}()
		return out
	}

	f.mu.Lock()
	f.subs[out] = struct{}{}
	f.mu.Unlock()
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, out)
		close(out)
		f.mu.Unlock()
	}()
	return out
}

func (f *RunFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
