package _202610010925_accrualRuns

import (
	"database/sql"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists accrual_runs (
			id serial primary key,
			trigger text not null,
			started_at timestamp with time zone not null,
			finished_at timestamp with time zone,
			processed integer not null default 0,
			accrued integer not null default 0,
			skipped integer not null default 0,
			failed integer not null default 0,
			error text
		)`,
		`create index if not exists idx_accrual_runs_started_at on accrual_runs (started_at)`,
	}

	for _, query := range queries {
		res := grm.Exec(query)
		if res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202610010925_accrualRuns"
}
