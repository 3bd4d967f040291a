package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"commerce-core/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// FindOrCreateAddress reuses an existing address for the user when one
// matches exactly on (line1, city, state, postal_code), else inserts a
// new record.
func (s *Store) FindOrCreateAddress(ctx context.Context, addr *models.Address) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id,
		`SELECT id FROM addresses
		 WHERE user_id = $1 AND line1 = $2 AND city = $3 AND state = $4 AND postal_code = $5
		 LIMIT 1`,
		addr.UserID, addr.Line1, addr.City, addr.State, addr.PostalCode)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	query := `
		INSERT INTO addresses (user_id, name, phone, line1, city, state, postal_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err = s.db.GetContext(ctx, &id, query,
		addr.UserID, addr.Name, addr.Phone, addr.Line1, addr.City, addr.State, addr.PostalCode)
	if err != nil {
		return 0, fmt.Errorf("failed to create address: %w", err)
	}
	return id, nil
}

// GetAddressByID retrieves an address record
func (s *Store) GetAddressByID(ctx context.Context, id int64) (*models.Address, error) {
	var addr models.Address
	err := s.db.GetContext(ctx, &addr, "SELECT * FROM addresses WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("address not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &addr, nil
}
