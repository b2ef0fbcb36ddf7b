// Package db stores the run ledger in SurrealDB.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// WebSocket upgrades need HTTP/1.1; keep wss:// from negotiating HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Auth levels accepted by Config.AuthLevel.
const (
	AuthRoot      = "root"
	AuthNamespace = "namespace"
	AuthDatabase  = "database"
)

const (
	defaultMaxRetries  = 10
	defaultDialTimeout = 5 * time.Second
)

// Config locates and authenticates against the ledger database.
type Config struct {
	// URL is a ws://, wss://, http:// or https:// address, with or
	// without the /rpc suffix.
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	// AuthLevel is AuthRoot (default), AuthNamespace or AuthDatabase.
	AuthLevel string
	// MaxRetries bounds reconnect attempts. Zero means 10.
	MaxRetries int
	// DialTimeout bounds a single connection attempt. Zero means 5s.
	DialTimeout time.Duration
}

// rpcBase returns the websocket base URL gorillaws expects: ws or wss,
// no trailing slash and no /rpc, which the dialer appends itself.
func (c Config) rpcBase() (string, error) {
	u, err := url.Parse(strings.TrimSpace(c.URL))
	if err != nil {
		return "", fmt.Errorf("%w: parse url: %w", ErrInvalidConfig, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported url scheme %q", ErrInvalidConfig, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: url %q has no host", ErrInvalidConfig, c.URL)
	}
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/rpc")
	return strings.TrimSuffix(u.String(), "/"), nil
}

// auth builds the sign-in credentials for the configured level.
func (c Config) auth() (surrealdb.Auth, error) {
	switch c.AuthLevel {
	case "", AuthRoot:
		return surrealdb.Auth{Username: c.Username, Password: c.Password}, nil
	case AuthNamespace:
		return surrealdb.Auth{Namespace: c.Namespace, Username: c.Username, Password: c.Password}, nil
	case AuthDatabase:
		return surrealdb.Auth{Namespace: c.Namespace, Database: c.Database, Username: c.Username, Password: c.Password}, nil
	}
	return surrealdb.Auth{}, fmt.Errorf("%w: unknown auth level %q", ErrInvalidConfig, c.AuthLevel)
}

func (c Config) retryer() *rews.ExponentialBackoffRetryer {
	r := rews.NewExponentialBackoffRetryer()
	r.InitialDelay = time.Second
	r.MaxDelay = 30 * time.Second
	r.Multiplier = 2.0
	r.MaxRetries = defaultMaxRetries
	if c.MaxRetries > 0 {
		r.MaxRetries = c.MaxRetries
	}
	return r
}

// Client is the run ledger over an auto-reconnecting SurrealDB websocket.
type Client struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	logger *slog.Logger
}

// NewClient connects, signs in and selects the ledger namespace and
// database. It does not touch the schema; see Open.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	base, err := cfg.rpcBase()
	if err != nil {
		return nil, err
	}
	creds, err := cfg.auth()
	if err != nil {
		return nil, err
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	sdkLogger := logger.New(log.Handler())
	codec := surrealcbor.New()
	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     base,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		dialTimeout,
		codec,
		sdkLogger,
	)
	conn.Retryer = cfg.retryer()

	log = log.With("component", "ledger")
	log.Debug("connecting to run ledger", "url", base, "namespace", cfg.Namespace, "database", cfg.Database)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect %s: %w", base, err)
	}

	c := &Client{conn: conn, logger: log}
	if err := c.session(ctx, cfg, creds); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	log.Info("run ledger connected", "auth_level", cfg.AuthLevel)
	return c, nil
}

func (c *Client) session(ctx context.Context, cfg Config, creds surrealdb.Auth) error {
	db, err := surrealdb.FromConnection(ctx, c.conn)
	if err != nil {
		return fmt.Errorf("from connection: %w", err)
	}
	if _, err := db.SignIn(ctx, creds); err != nil {
		return fmt.Errorf("sign in as %s: %w", cfg.Username, err)
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}
	c.db = db
	return nil
}

// Open connects and applies the ledger schema.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	c, err := NewClient(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := c.InitSchema(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	return c, nil
}

// Close closes the connection.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Debug("closing run ledger")
	return c.conn.Close(ctx)
}

// InitSchema defines the ledger tables. It is safe to run on every start.
func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, c.db, SchemaSQL, nil); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	c.logger.Debug("ledger schema ready")
	return nil
}

// WipeData deletes every ledger record and keeps the schema. Tests only.
func (c *Client) WipeData(ctx context.Context) error {
	// Children first, they reference run.
	for _, table := range []string{"run_record", "run_failure", "run"} {
		if _, err := surrealdb.Query[any](ctx, c.db, "DELETE "+table, nil); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	c.logger.Warn("run ledger wiped")
	return nil
}
