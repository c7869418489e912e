package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink accumulates counters and gauges into redis hashes. Samples are
// queued on a buffered channel and flushed by a single background worker
// pipeline, so callers never wait on the store. The queue depth doubles as
// the pending-operation gauge.
type RedisSink struct {
	rdb    *redis.Client
	prefix string
	ch     chan sample
	done   chan struct{}
}

type sample struct {
	name    string
	counter bool
	delta   int64
	value   float64
}

type RedisSinkOption func(*RedisSink)

func WithPrefix(prefix string) RedisSinkOption {
	return func(s *RedisSink) { s.prefix = prefix }
}

func NewRedisSink(rdb *redis.Client, opts ...RedisSinkOption) *RedisSink {
	s := &RedisSink{
		rdb:    rdb,
		prefix: "metrics",
		ch:     make(chan sample, 1024),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

func (s *RedisSink) Count(name string, delta int64) {
	select {
	case s.ch <- sample{name: name, counter: true, delta: delta}:
	default:
		// queue full, drop
	}
}

func (s *RedisSink) Gauge(name string, value float64) {
	select {
	case s.ch <- sample{name: name, value: value}:
	default:
	}
}

// Close stops the worker after draining queued samples.
func (s *RedisSink) Close() {
	close(s.ch)
	<-s.done
}

func (s *RedisSink) run() {
	defer close(s.done)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var batch []sample
	for {
		select {
		case smp, ok := <-s.ch:
			if !ok {
				s.flush(batch)
				return
			}
			batch = append(batch, smp)
			if len(batch) >= 100 {
				s.flush(batch)
				batch = nil
			}
		case <-ticker.C:
			s.flush(batch)
			batch = nil
		}
	}
}

func (s *RedisSink) flush(batch []sample) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	pipe := s.rdb.Pipeline()
	countersKey := s.prefix + ":counters"
	gaugesKey := s.prefix + ":gauges"
	for _, smp := range batch {
		if smp.counter {
			pipe.HIncrBy(ctx, countersKey, smp.name, smp.delta)
		} else {
			pipe.HSet(ctx, gaugesKey, smp.name, strconv.FormatFloat(smp.value, 'f', -1, 64))
		}
	}
	pipe.HSet(ctx, gaugesKey, PendingOps, strconv.Itoa(len(s.ch)))

	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("metrics flush failed", "count", len(batch), "err", err)
	}
}
