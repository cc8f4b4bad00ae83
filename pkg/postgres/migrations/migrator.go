package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	_202610010900_chainRateConfigs "github.com/Layr-Labs/rewards-engine/pkg/postgres/migrations/202610010900_chainRateConfigs"
	_202610010905_contributions "github.com/Layr-Labs/rewards-engine/pkg/postgres/migrations/202610010905_contributions"
	_202610010910_rewardRecords "github.com/Layr-Labs/rewards-engine/pkg/postgres/migrations/202610010910_rewardRecords"
	_202610010915_snapshots "github.com/Layr-Labs/rewards-engine/pkg/postgres/migrations/202610010915_snapshots"
	_202610010920_distributionPools "github.com/Layr-Labs/rewards-engine/pkg/postgres/migrations/202610010920_distributionPools"
	_202610010925_accrualRuns "github.com/Layr-Labs/rewards-engine/pkg/postgres/migrations/202610010925_accrualRuns"
	_202610010930_settlements "github.com/Layr-Labs/rewards-engine/pkg/postgres/migrations/202610010930_settlements"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Migration interface {
	Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error
	GetName() string
}

type Migrator struct {
	Db           *sql.DB
	GDb          *gorm.DB
	Logger       *zap.Logger
	globalConfig *config.Config
}

func NewMigrator(db *sql.DB, gDb *gorm.DB, l *zap.Logger, cfg *config.Config) *Migrator {
	gDb.Exec(`create table if not exists migrations (
		name text primary key,
		created_at timestamp with time zone default current_timestamp,
		updated_at timestamp with time zone default null
	)`)
	return &Migrator{
		Db:           db,
		GDb:          gDb,
		Logger:       l,
		globalConfig: cfg,
	}
}

// Migrations are applied in the order listed here; never reorder or remove entries.
func allMigrations() []Migration {
	return []Migration{
		&_202610010900_chainRateConfigs.Migration{},
		&_202610010905_contributions.Migration{},
		&_202610010910_rewardRecords.Migration{},
		&_202610010915_snapshots.Migration{},
		&_202610010920_distributionPools.Migration{},
		&_202610010925_accrualRuns.Migration{},
		&_202610010930_settlements.Migration{},
	}
}

func (m *Migrator) MigrateAll(ctx context.Context) error {
	for _, migration := range allMigrations() {
		if err := m.Migrate(ctx, migration); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", migration.GetName(), err)
		}
	}
	return nil
}

type MigrationRecord struct {
	Name      string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

func (MigrationRecord) TableName() string {
	return "migrations"
}

func (m *Migrator) Migrate(ctx context.Context, migration Migration) error {
	name := migration.GetName()

	var existing MigrationRecord
	res := m.GDb.WithContext(ctx).Model(&MigrationRecord{}).Where("name = ?", name).First(&existing)
	if res.Error == nil {
		m.Logger.Sugar().Debugw("Migration already run", zap.String("name", name))
		return nil
	}
	if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return res.Error
	}

	m.Logger.Sugar().Infow("Running migration", zap.String("name", name))
	if err := migration.Up(m.Db, m.GDb.WithContext(ctx), m.globalConfig); err != nil {
		m.Logger.Sugar().Errorw("Failed to run migration", zap.String("name", name), zap.Error(err))
		return err
	}

	res = m.GDb.WithContext(ctx).Create(&MigrationRecord{Name: name, CreatedAt: time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	return nil
}
