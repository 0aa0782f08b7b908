// Package dbtest opens throwaway SQLite databases carrying the storefront
// schema for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/angelmondragon/fashionstore-backend/pkg/db"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Schema mirrors the goose migrations in SQLite dialect.
var Schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL DEFAULT '',
		phone TEXT,
		role TEXT NOT NULL DEFAULT 'user',
		status TEXT NOT NULL DEFAULT 'active',
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT users_email_key UNIQUE (email)
	)`,
	`CREATE TABLE wallets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		balance NUMERIC NOT NULL DEFAULT 0 CHECK (balance >= 0),
		status TEXT NOT NULL DEFAULT 'active',
		version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT wallets_user_id_key UNIQUE (user_id)
	)`,
	`CREATE TABLE wallet_transactions (
		id TEXT PRIMARY KEY,
		wallet_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount NUMERIC NOT NULL CHECK (amount > 0),
		status TEXT NOT NULL,
		order_id TEXT,
		description TEXT NOT NULL DEFAULT '',
		balance_after NUMERIC NOT NULL,
		sequence INTEGER NOT NULL,
		created_at DATETIME,
		CONSTRAINT wallet_transactions_wallet_sequence_key UNIQUE (wallet_id, sequence)
	)`,
	`CREATE TABLE categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		parent_id TEXT,
		image_url TEXT,
		level INTEGER NOT NULL DEFAULT 1 CHECK (level BETWEEN 1 AND 3),
		slug TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT categories_slug_key UNIQUE (slug),
		CONSTRAINT categories_not_self_parent CHECK (parent_id IS NULL OR parent_id <> id)
	)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		category_id TEXT,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC NOT NULL CHECK (price >= 0),
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		image_url TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT products_slug_key UNIQUE (slug)
	)`,
	`CREATE TABLE cart_items (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		size TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT cart_items_variant_key UNIQUE (user_id, product_id, size, color)
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		payment_method TEXT NOT NULL,
		payment_status TEXT NOT NULL DEFAULT 'unpaid',
		subtotal NUMERIC NOT NULL,
		shipping_fee NUMERIC NOT NULL,
		total NUMERIC NOT NULL,
		shipping_address TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		price NUMERIC NOT NULL,
		size TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT ''
	)`,
}

// Open returns a fresh in-memory database with the schema applied. The pool
// is pinned to one connection so concurrent callers queue instead of hitting
// SQLITE_BUSY.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:fs_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range Schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

// OpenClient wraps Open in a db.Client so services get a real transaction runner.
func OpenClient(t testing.TB) (*gorm.DB, *db.Client) {
	t.Helper()
	conn := Open(t)
	return conn, db.NewFromGorm(conn)
}
