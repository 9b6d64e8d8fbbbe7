package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn, err := BuildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// BuildMySQLDSN assembles a go-sql-driver DSN from discrete parameters.
// Shared with the database connector driver.
func BuildMySQLDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	if cfg.Username == "" || cfg.Database == "" {
		return "", errors.New("mysql configuration requires username and database name")
	}

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}

	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	user := cfg.Username
	if cfg.Password != "" {
		user = fmt.Sprintf("%s:%s", cfg.Username, cfg.Password)
	}

	opts := []string{"charset=utf8mb4", "parseTime=True", "loc=Local"}
	// MySQL has no "prefer" mode; only an explicit require maps to TLS.
	if strings.EqualFold(cfg.SSLMode, "require") {
		opts = append(opts, "tls=true")
	}

	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s", user, host, port, cfg.Database, strings.Join(opts, "&")), nil
}
