package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"github.com/Layr-Labs/rewards-engine/internal/tests"
	"github.com/Layr-Labs/rewards-engine/pkg/postgres/migrations"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultSSLMode = "disable"
	rootDatabase   = "postgres"

	uniqueViolationCode = pq.ErrorCode("23505")

	maxOpenConns    = 20
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
	pingTimeout     = 10 * time.Second
)

var validSSLModes = []string{"disable", "require", "verify-ca", "verify-full"}

// PostgresConfig describes how to reach the engine's database.
type PostgresConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	DbName   string
	// SchemaName, when set, becomes the connection's search_path.
	SchemaName string

	// CreateDbIfNotExists creates DbName through the root database before connecting.
	CreateDbIfNotExists bool

	SSLMode     string
	SSLCert     string
	SSLKey      string
	SSLRootCert string
}

type Postgres struct {
	Db *sql.DB
}

func PostgresConfigFromDbConfig(dbCfg *config.DatabaseConfig) *PostgresConfig {
	return &PostgresConfig{
		Host:        dbCfg.Host,
		Port:        dbCfg.Port,
		Username:    dbCfg.User,
		Password:    dbCfg.Password,
		DbName:      dbCfg.DbName,
		SchemaName:  dbCfg.SchemaName,
		SSLMode:     dbCfg.SSLMode,
		SSLCert:     dbCfg.SSLCert,
		SSLKey:      dbCfg.SSLKey,
		SSLRootCert: dbCfg.SSLRootCert,
	}
}

// connectionString renders cfg as a libpq key/value DSN. Timestamps are always
// exchanged in UTC since accrual windows are whole UTC hours.
func connectionString(cfg *PostgresConfig, dbName string) (string, error) {
	sslMode := defaultSSLMode
	if cfg.SSLMode != "" {
		if !slices.Contains(validSSLModes, cfg.SSLMode) {
			return "", fmt.Errorf("invalid ssl mode %q, must be one of: %s", cfg.SSLMode, strings.Join(validSSLModes, ", "))
		}
		sslMode = cfg.SSLMode
	}

	parts := []string{
		fmt.Sprintf("host=%s", cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
		fmt.Sprintf("dbname=%s", dbName),
		fmt.Sprintf("sslmode=%s", sslMode),
		"TimeZone=UTC",
	}
	if cfg.Username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", quoteDsnValue(cfg.Password)))
	}
	if cfg.SchemaName != "" {
		parts = append(parts, fmt.Sprintf("search_path=%s", cfg.SchemaName))
	}
	if sslMode != defaultSSLMode {
		for key, value := range map[string]string{
			"sslcert":     cfg.SSLCert,
			"sslkey":      cfg.SSLKey,
			"sslrootcert": cfg.SSLRootCert,
		} {
			if value != "" {
				parts = append(parts, fmt.Sprintf("%s=%s", key, value))
			}
		}
	}
	return strings.Join(parts, " "), nil
}

func quoteDsnValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func withRootConnection(cfg *PostgresConfig, fn func(db *sql.DB) error) error {
	dsn, err := connectionString(cfg, rootDatabase)
	if err != nil {
		return err
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open root connection: %w", err)
	}
	defer db.Close()
	return fn(db)
}

// CreateDatabaseIfNotExists creates cfg.DbName when it is missing.
func CreateDatabaseIfNotExists(cfg *PostgresConfig, l *zap.Logger) error {
	return withRootConnection(cfg, func(db *sql.DB) error {
		var exists bool
		err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM pg_catalog.pg_database WHERE datname = $1)`, cfg.DbName).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check for database %s: %w", cfg.DbName, err)
		}
		if exists {
			return nil
		}
		if _, err := db.Exec(fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(cfg.DbName))); err != nil {
			return fmt.Errorf("failed to create database %s: %w", cfg.DbName, err)
		}
		l.Sugar().Infow("Created database", zap.String("database", cfg.DbName))
		return nil
	})
}

func DeleteTestDatabase(cfg *PostgresConfig, dbName string) error {
	return withRootConnection(cfg, func(db *sql.DB) error {
		_, err := db.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", pq.QuoteIdentifier(dbName)))
		return err
	})
}

// NewPostgres opens and pings a pooled connection to the configured database.
func NewPostgres(cfg *PostgresConfig, l *zap.Logger) (*Postgres, error) {
	if cfg.CreateDbIfNotExists {
		if err := CreateDatabaseIfNotExists(cfg, l); err != nil {
			return nil, err
		}
	}
	dsn, err := connectionString(cfg, cfg.DbName)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach database %s on %s:%d: %w", cfg.DbName, cfg.Host, cfg.Port, err)
	}
	return &Postgres{Db: db}, nil
}

func NewGormFromPostgresConnection(pgDb *sql.DB) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: pgDb}), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup gorm: %w", err)
	}
	return db, nil
}

// GetTestPostgresDatabase creates a uniquely named throw-away database and applies
// every migration to it.
func GetTestPostgresDatabase(cfg config.DatabaseConfig, gCfg *config.Config, l *zap.Logger) (string, *sql.DB, *gorm.DB, error) {
	testDbName, pg, grm, err := GetTestPostgresDatabaseWithoutMigrations(cfg, l)
	if err != nil {
		return testDbName, nil, nil, err
	}
	if err = migrations.NewMigrator(pg, grm, l, gCfg).MigrateAll(context.Background()); err != nil {
		return testDbName, nil, nil, err
	}
	return testDbName, pg, grm, nil
}

func GetTestPostgresDatabaseWithoutMigrations(cfg config.DatabaseConfig, l *zap.Logger) (string, *sql.DB, *gorm.DB, error) {
	testDbName, err := tests.GenerateTestDbName()
	if err != nil {
		return testDbName, nil, nil, err
	}
	cfg.DbName = testDbName

	pgConfig := PostgresConfigFromDbConfig(&cfg)
	pgConfig.CreateDbIfNotExists = true

	pg, err := NewPostgres(pgConfig, l)
	if err != nil {
		return testDbName, nil, nil, err
	}
	grm, err := NewGormFromPostgresConnection(pg.Db)
	if err != nil {
		return testDbName, nil, nil, err
	}
	return testDbName, pg.Db, grm, nil
}

func TeardownTestDatabase(dbname string, cfg *config.Config, db *gorm.DB, l *zap.Logger) {
	if rawDb, err := db.DB(); err == nil {
		_ = rawDb.Close()
	}
	if err := DeleteTestDatabase(PostgresConfigFromDbConfig(&cfg.DatabaseConfig), dbname); err != nil {
		l.Sugar().Errorw("Failed to delete test database", zap.String("database", dbname), zap.Error(err))
	}
}

// IsDuplicateKeyError reports whether err is a unique constraint violation.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}
