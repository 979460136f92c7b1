// Package mysql reads the store catalog from an existing POS database.
package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

// Connect opens a small pool; the catalog is only ever read.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, analysis.Wrap(analysis.ErrConfiguration, "open mysql", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		_ = db.Close()
		return nil, analysis.Wrap(analysis.ErrNetwork, "ping mysql", err)
	}
	return db, nil
}
