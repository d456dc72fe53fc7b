package mysqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

type Config struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	MaxOpenConns int
}

func NewConfigFromEnv() *Config {
	maxOpen, err := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "4"))
	if err != nil || maxOpen <= 0 {
		maxOpen = 4
	}
	return &Config{
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         getEnv("DB_PORT", "3306"),
		User:         getEnv("DB_USER", "root"),
		Password:     getEnv("DB_PASSWORD", "password"),
		Database:     getEnv("DB_NAME", "quickfleet"),
		MaxOpenConns: maxOpen,
	}
}

func (c *Config) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, c.Port)
	mc.DBName = c.Database
	mc.ParseTime = true
	return mc.FormatDSN()
}

// Connect opens a small pool; the watch list sees a handful of writes per
// minute at most.
func Connect(ctx context.Context, config *Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", config.Database, err)
	}

	log.Printf("Connected to database: %s@%s", config.Database, config.Host)
	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
