package db

import (
	"context"
	"fmt"

	"github.com/bryanwahyu/logsentinel/internal/config"
	"github.com/bryanwahyu/logsentinel/internal/domain/ledger"
	"github.com/bryanwahyu/logsentinel/internal/infra/db/mysql"
	"github.com/bryanwahyu/logsentinel/internal/infra/db/postgres"
	"github.com/bryanwahyu/logsentinel/internal/infra/db/sqlite"
)

// OpenLedger pilih driver sesuai config. Driver "none" returns ledger.ErrDisabled.
func OpenLedger(ctx context.Context, cfg *config.Config) (ledger.Repository, error) {
	switch cfg.LedgerDriver() {
	case config.DriverNone:
		return nil, ledger.ErrDisabled
	case config.DriverSQLite:
		return sqlite.Open(cfg.Ledger.Path)
	case config.DriverMySQL:
		conn, err := mysql.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		if err := mysql.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate mysql: %w", err)
		}
		return mysql.NewEventRepository(conn), nil
	case config.DriverPostgres:
		conn, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return postgres.NewEventRepository(conn), nil
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", cfg.Ledger.Driver)
	}
}
