package probe

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	livenessQuery = "SELECT 1 AS test"
	identityQuery = "SELECT @@hostname AS hostname, @@port AS port, DATABASE() AS current_db"
)

// Target carries the credentials of the diagnosed database
type Target struct {
	Username string
	Password string
	Name     string
}

// Conn is one usable database connection for a single probe.
// Close must release the underlying resource exactly once:
// one-shot connections are torn down, pooled ones returned to the pool.
type Conn interface {
	Liveness(ctx context.Context) ([]LivenessRow, error)
	ServerInfo(ctx context.Context) ([]ServerInfo, error)
	Close() error
}

// Connector establishes a connection to a host:port target of one family
type Connector interface {
	Connect(ctx context.Context, target string, family Family) (Conn, error)
}

// OneShotConnector opens a fresh connection per probe and tears it down
// when the probe releases it
type OneShotConnector struct {
	target         Target
	connectTimeout time.Duration
}

// NewOneShotConnector creates a one-shot connector
func NewOneShotConnector(target Target, connectTimeout time.Duration) *OneShotConnector {
	return &OneShotConnector{
		target:         target,
		connectTimeout: connectTimeout,
	}
}

// Connect opens and verifies a single connection to the target
func (c *OneShotConnector) Connect(ctx context.Context, target string, _ Family) (Conn, error) {
	db, err := sql.Open("mysql", formatDSN(c.target, target, c.connectTimeout))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// sql.Open is lazy, the handshake happens here
	pingCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &dbConn{db: db, owned: true}, nil
}

// formatDSN builds the driver DSN for a host:port target. IPv6 literals
// arrive already bracket-wrapped via net.JoinHostPort.
func formatDSN(t Target, addr string, timeout time.Duration) string {
	cfg := mysql.NewConfig()
	cfg.User = t.Username
	cfg.Passwd = t.Password
	cfg.DBName = t.Name
	cfg.Net = "tcp"
	cfg.Addr = addr
	cfg.Timeout = timeout
	cfg.ReadTimeout = timeout
	cfg.WriteTimeout = timeout
	return cfg.FormatDSN()
}

// dbConn adapts *sql.DB to Conn. owned distinguishes one-shot handles,
// which Close tears down, from pooled handles, which it leaves alone.
type dbConn struct {
	db    *sql.DB
	owned bool
}

func (c *dbConn) Liveness(ctx context.Context) ([]LivenessRow, error) {
	var row LivenessRow
	if err := c.db.QueryRowContext(ctx, livenessQuery).Scan(&row.Test); err != nil {
		return nil, err
	}
	return []LivenessRow{row}, nil
}

func (c *dbConn) ServerInfo(ctx context.Context) ([]ServerInfo, error) {
	var info ServerInfo
	var database sql.NullString
	err := c.db.QueryRowContext(ctx, identityQuery).
		Scan(&info.Hostname, &info.Port, &database)
	if err != nil {
		return nil, err
	}
	info.Database = database.String
	return []ServerInfo{info}, nil
}

func (c *dbConn) Close() error {
	if !c.owned {
		return nil
	}
	return c.db.Close()
}
