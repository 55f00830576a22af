package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/centralbank/fabric-asset-api/backend/pkg/common"
	"github.com/hyperledger/fabric-lib-go/common/flogging"
	_ "github.com/lib/pq" // Postgres driver
	"github.com/pkg/errors"
)

var logger = flogging.MustGetLogger("db")

const (
	pingAttempts = 5
	pingInterval = 2 * time.Second
)

// DSN renders cfg as a lib/pq keyword/value connection string.
func DSN(cfg common.DBConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		quote(cfg.Host), quote(cfg.Port), quote(cfg.User), quote(cfg.Password), quote(cfg.Name), quote(cfg.SSLMode))
}

func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Connect establishes a connection to the database
func Connect(ctx context.Context, cfg common.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open db connection")
	}

	if err := waitReady(ctx, db, pingAttempts, pingInterval); err != nil {
		db.Close()
		return nil, err
	}

	logger.Infof("Successfully connected to database %s at %s:%s", cfg.Name, cfg.Host, cfg.Port)
	return db, nil
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// waitReady pings until the database answers, the attempts run out or ctx
// is done.
func waitReady(ctx context.Context, db pinger, attempts int, interval time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		logger.Warnf("Waiting for DB... (%d/%d): %s", i+1, attempts, err)
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "gave up waiting for db")
		case <-time.After(interval):
		}
	}
	return errors.Wrap(err, "failed to ping db")
}
