package config

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"

	"schema-drift-monitor/internal/dialect"
	"schema-drift-monitor/internal/models"
)

// DSN builds the driver connection string for the configured engine.
func (c DatabaseConfig) DSN() (string, error) {
	switch c.Driver {
	case "postgres":
		port := c.Port
		if port == "" {
			port = "5432"
		}
		q := url.Values{}
		q.Set("sslmode", c.SSLMode)
		if c.ConnectTimeout > 0 {
			q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     net.JoinHostPort(c.Host, port),
			Path:     "/" + c.Name,
			RawQuery: q.Encode(),
		}
		return u.String(), nil

	case "mysql":
		port := c.Port
		if port == "" {
			port = "3306"
		}
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, port)
		mc.DBName = c.Name
		mc.ParseTime = true
		mc.Timeout = c.ConnectTimeout
		return mc.FormatDSN(), nil

	default:
		return "", fmt.Errorf("unsupported database driver: %s", c.Driver)
	}
}

// OpenDatabase opens and pings the database described by cfg. The ping is
// retried MaxAttempts times, RetryDelay apart, before a
// *models.ConnectivityError is returned.
func OpenDatabase(ctx context.Context, name string, cfg DatabaseConfig, logger *slog.Logger) (*sql.DB, dialect.Dialect, error) {
	d, err := dialect.Lookup(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s database: %w", name, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	target := fmt.Sprintf("%s (%s:%s/%s)", name, cfg.Host, cfg.Port, cfg.Name)
	if err := PingWithRetry(ctx, db, target, cfg.MaxAttempts, cfg.RetryDelay, cfg.ConnectTimeout, logger); err != nil {
		db.Close()
		return nil, nil, err
	}

	logger.Info("connected to database", "name", name, "driver", cfg.Driver, "host", cfg.Host, "database", cfg.Name)
	return db, d, nil
}

// PingWithRetry pings db up to attempts times with a constant delay between
// tries. Each ping is bounded by timeout when it is positive.
func PingWithRetry(ctx context.Context, db *sql.DB, target string, attempts int, delay, timeout time.Duration, logger *slog.Logger) error {
	if attempts < 1 {
		attempts = 1
	}

	tried := 0
	operation := func() error {
		tried++
		pingCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			pingCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		err := db.PingContext(pingCtx)
		if err != nil {
			logger.Warn("database connection attempt failed",
				"target", target, "attempt", tried, "max_attempts", attempts, "error", err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return &models.ConnectivityError{Target: target, Attempts: tried, Err: err}
	}
	return nil
}
