package connectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/modelgrid/connecthub/internal/database"
	"github.com/modelgrid/connecthub/internal/models"
)

const databaseProbeTimeout = 10 * time.Second

// DatabaseDriver probes database connections by opening a short-lived
// connection with the customer supplied parameters and pinging it.
type DatabaseDriver struct {
	// open is swappable for tests; defaults to a real gorm dial.
	open func(driver, dsn string) (*gorm.DB, error)
}

// NewDatabaseDriver constructs the driver.
func NewDatabaseDriver() *DatabaseDriver {
	return &DatabaseDriver{open: openDatabase}
}

// Type implements Driver.
func (d *DatabaseDriver) Type() models.ConnectionType {
	return models.ConnectionTypeDatabase
}

// Test implements Driver.
func (d *DatabaseDriver) Test(ctx context.Context, in TestInput) error {
	var settings DatabaseSettings
	if err := DecodeSettings(in.Settings, &settings); err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	var creds DatabaseCredentials
	if err := decodeCredentials(in.Credentials, &creds); err != nil {
		return err
	}
	if creds.Password == "" {
		return fmt.Errorf("password is required")
	}

	driver := strings.ToLower(strings.TrimSpace(in.Integration.DatabaseDriver))
	if driver == "" {
		driver = "postgres"
	}

	dsn, err := buildProbeDSN(driver, settings, creds)
	if err != nil {
		return err
	}

	db, err := d.open(driver, dsn)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", settings.Host, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("connect to %s: %w", settings.Host, err)
	}
	defer sqlDB.Close()

	pingCtx, cancel := context.WithTimeout(ctx, databaseProbeTimeout)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping %s: %w", settings.Host, err)
	}
	return nil
}

func buildProbeDSN(driver string, settings DatabaseSettings, creds DatabaseCredentials) (string, error) {
	cfg := database.Config{
		Host:     settings.Host,
		Port:     settings.Port,
		Database: settings.Database,
		Username: settings.Username,
		Password: creds.Password,
		SSLMode:  settings.SSLMode,
	}

	switch driver {
	case "postgres":
		return database.BuildPostgresDSN(cfg)
	case "mysql":
		return database.BuildMySQLDSN(cfg)
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openDatabase(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	case "mysql":
		return gorm.Open(mysql.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
