package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/emranffl/minifyurl/internal/clicks"
	"github.com/emranffl/minifyurl/internal/config"
	applog "github.com/emranffl/minifyurl/internal/logger"
	"github.com/emranffl/minifyurl/internal/shortener"
)

const (
	batchSize  = 100
	flushEvery = 2 * time.Second
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		slog.Warn(".env file not found, relying on env vars", "err", err)
	}

	applog.InitFromEnv()

	cfg := config.Load()
	if cfg.RabbitURL == "" {
		slog.Error("RABBITMQ_URL is required for the analytics worker")
		os.Exit(1)
	}

	clients, err := config.Dial(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to dial backing services", "err", err)
		os.Exit(1)
	}
	defer clients.Close()

	links := shortener.NewGormLinkStore(clients.DB)

	q, err := clients.RabbitCh.QueueDeclare(
		cfg.ClickQueue,
		true, false, false, false, nil,
	)
	if err != nil {
		slog.Error("failed to declare queue", "err", err)
		os.Exit(1)
	}

	// Prefetch one batch worth of messages.
	if err := clients.RabbitCh.Qos(batchSize, 0, false); err != nil {
		slog.Error("failed to set QoS", "err", err)
		os.Exit(1)
	}

	msgs, err := clients.RabbitCh.Consume(
		q.Name, "", false, false, false, false, nil,
	)
	if err != nil {
		slog.Error("failed to register consumer", "err", err)
		os.Exit(1)
	}

	slog.Info("analytics worker started, waiting for click events")

	w := &worker{links: links, redis: clients.Redis}

	var events []clicks.Event
	var deliveries []amqp091.Delivery

	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				slog.Warn("rabbitmq channel closed")
				return
			}
			var ev clicks.Event
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				slog.Error("error decoding message, rejecting", "err", err)
				d.Reject(false)
				continue
			}
			events = append(events, ev)
			deliveries = append(deliveries, d)

			if len(events) >= batchSize {
				w.processBatch(events, deliveries)
				events, deliveries = nil, nil
				ticker.Reset(flushEvery)
			}

		case <-ticker.C:
			if len(events) > 0 {
				slog.Info("timer flush, processing queued events", "count", len(events))
				w.processBatch(events, deliveries)
				events, deliveries = nil, nil
			}
		}
	}
}

type worker struct {
	links shortener.LinkStore
	redis *redis.Client
}

// processBatch folds one batch of click events into the record store and
// retires the matching pending deltas in the coordination store. Failures
// nack the whole batch for redelivery; counting stays lossy-but-eventual.
func (w *worker) processBatch(events []clicks.Event, deliveries []amqp091.Delivery) {
	if len(events) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	counts := make(map[string]int64)
	latest := make(map[string]time.Time)
	for _, ev := range events {
		counts[ev.ShortCode]++
		if ev.Timestamp.After(latest[ev.ShortCode]) {
			latest[ev.ShortCode] = ev.Timestamp
		}
	}

	for code, n := range counts {
		if err := w.links.IncrementClicks(ctx, code, n, latest[code]); err != nil {
			slog.Error("error incrementing clicks, nacking batch", "short_code", code, "err", err)
			nackAll(deliveries)
			return
		}
	}

	w.retirePending(ctx, counts)
	ackAll(deliveries)
	slog.Info("processed batch", "events", len(events), "codes", len(counts))
}

// retirePending decrements the coordination-store click counters by what was
// just persisted so stats reads stop counting those events twice. Best
// effort: a failure here only inflates the advisory pending delta.
func (w *worker) retirePending(ctx context.Context, counts map[string]int64) {
	for code, n := range counts {
		key := shortener.ClicksKey(code)
		left, err := w.redis.DecrBy(ctx, key, n).Result()
		if err != nil {
			slog.Warn("failed to retire pending clicks", "short_code", code, "err", err)
			continue
		}
		if left <= 0 {
			w.redis.Del(ctx, key)
		}
	}
}

func ackAll(deliveries []amqp091.Delivery) {
	for _, d := range deliveries {
		d.Ack(false)
	}
}

func nackAll(deliveries []amqp091.Delivery) {
	for _, d := range deliveries {
		d.Nack(false, true)
	}
}
