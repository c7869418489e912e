// Package config loads environment configuration and owns the shared client
// handles. Clients are built once at startup and injected into components;
// nothing reads them through ambient globals.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	applog "github.com/emranffl/minifyurl/internal/logger"
	"github.com/emranffl/minifyurl/internal/metrics"
)

type Config struct {
	AppDomain     string
	Port          string
	DBURL         string
	GormLogLevel  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RabbitURL     string
	ClickQueue    string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return Config{
		AppDomain:     getenvDefault("APP_DOMAIN", "http://localhost:3000"),
		Port:          getenvDefault("API_SERVICE_PORT", ":3000"),
		DBURL:         os.Getenv("DB_URL"),
		GormLogLevel:  getenvDefault("GORM_LOG_LEVEL", "warn"),
		RedisAddr:     getenvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		RabbitURL:     os.Getenv("RABBITMQ_URL"),
		ClickQueue:    getenvDefault("CLICK_QUEUE_NAME", "click_events"),
	}
}

// Clients bundles the process-wide store handles with an explicit lifecycle:
// dial once at startup, Close to drain on shutdown.
type Clients struct {
	Redis      *redis.Client
	DB         *gorm.DB
	RabbitConn *amqp091.Connection
	RabbitCh   *amqp091.Channel
}

// Dial connects every backing service the API needs. RabbitMQ is optional:
// with no RABBITMQ_URL the click pipeline degrades to direct record-store
// increments.
func Dial(ctx context.Context, cfg Config) (*Clients, error) {
	db, err := gorm.Open(postgres.Open(cfg.DBURL), &gorm.Config{
		Logger:         applog.NewGormLogger(cfg.GormLogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	c := &Clients{Redis: rdb, DB: db}

	if cfg.RabbitURL != "" {
		conn, err := amqp091.Dial(cfg.RabbitURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			c.Close()
			return nil, fmt.Errorf("open rabbitmq channel: %w", err)
		}
		c.RabbitConn = conn
		c.RabbitCh = ch
	}

	return c, nil
}

// Close drains the shared handles. Safe to call with partially-dialed state.
func (c *Clients) Close() {
	if c.RabbitCh != nil {
		c.RabbitCh.Close()
	}
	if c.RabbitConn != nil {
		c.RabbitConn.Close()
	}
	if c.Redis != nil {
		c.Redis.Close()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

// StartGaugeLoop reports connection-pool gauges until the context ends.
func (c *Clients) StartGaugeLoop(ctx context.Context, sink metrics.Sink, every time.Duration) {
	if every <= 0 {
		every = 15 * time.Second
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				total := float64(c.Redis.PoolStats().TotalConns)
				if sqlDB, err := c.DB.DB(); err == nil {
					total += float64(sqlDB.Stats().OpenConnections)
				}
				sink.Gauge(metrics.StoreConnections, total)
			}
		}
	}()
}

func getenvDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
