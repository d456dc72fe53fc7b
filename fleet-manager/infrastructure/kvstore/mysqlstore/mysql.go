package mysqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS fleet_kv (
		k VARBINARY(255) NOT NULL PRIMARY KEY,
		v MEDIUMBLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)
`

const (
	maxKeyLen = 255

	errDuplicateEntry = 1062
)

// Storage runs each operation as its own autocommit statement, so a
// mutation is committed when it returns.
type Storage struct {
	db *sql.DB
}

func NewStore(ctx context.Context, db *sql.DB) (*Storage, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT v FROM fleet_kv WHERE k = ?`

	var value []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w: %v", key, domain.ErrStorageFail, err)
	}
	return value, nil
}

func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	query := `
		INSERT INTO fleet_kv (k, v) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE v = VALUES(v)
	`

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w: %v", key, domain.ErrStorageFail, err)
	}
	return nil
}

func (s *Storage) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	query := `INSERT INTO fleet_kv (k, v) VALUES (?, ?)`

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		if isDuplicateEntry(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to set %s: %w: %v", key, domain.ErrStorageFail, err)
	}
	return true, nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM fleet_kv WHERE k = ?`

	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w: %v", key, domain.ErrStorageFail, err)
	}
	return nil
}

func (s *Storage) Scan(ctx context.Context, prefix string) ([]domain.Item, error) {
	query := `SELECT k, v FROM fleet_kv WHERE k LIKE ? ESCAPE '!' ORDER BY k`

	rows, err := s.db.QueryContext(ctx, query, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w: %v", prefix, domain.ErrStorageFail, err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0)
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.Key, &item.Value); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w: %v", domain.ErrStorageFail, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w: %v", prefix, domain.ErrStorageFail, err)
	}
	return items, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// checkKey rejects keys the k column would not hold as is.
func checkKey(key string) error {
	if len(key) > maxKeyLen {
		return fmt.Errorf("key of %d bytes exceeds %d: %w", len(key), maxKeyLen, domain.ErrStorageFail)
	}
	return nil
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry
}

func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
