package tests

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"github.com/google/uuid"
)

const testDbEnvPrefix = "REWARDS_ENGINE_TEST_DB_"

// GetDbConfigFromEnv reads the connection settings used by database-backed tests.
// REWARDS_ENGINE_TEST_DB_HOST must be set for those tests to run.
func GetDbConfigFromEnv() *config.DatabaseConfig {
	port, err := strconv.Atoi(os.Getenv(testDbEnvPrefix + "PORT"))
	if err != nil || port == 0 {
		port = 5432
	}
	return &config.DatabaseConfig{
		Host:       os.Getenv(testDbEnvPrefix + "HOST"),
		Port:       port,
		User:       os.Getenv(testDbEnvPrefix + "USER"),
		Password:   os.Getenv(testDbEnvPrefix + "PASSWORD"),
		SchemaName: os.Getenv(testDbEnvPrefix + "SCHEMA_NAME"),
	}
}

// SkipWithoutDatabase skips database-backed tests when no test database is configured.
func SkipWithoutDatabase(t *testing.T) {
	t.Helper()
	if GetDbConfigFromEnv().Host == "" {
		t.Skipf("%sHOST not set, skipping database test", testDbEnvPrefix)
	}
}

func GetConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Debug = os.Getenv(config.ENV_PREFIX+"_DEBUG") == "true"
	cfg.DatabaseConfig = *GetDbConfigFromEnv()
	return cfg
}

func GenerateTestDbName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("test_%s", strings.ReplaceAll(id.String(), "-", "")), nil
}
