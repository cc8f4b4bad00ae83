package _202610010920_distributionPools

import (
	"database/sql"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists distribution_pools (
			period_key text primary key references snapshots (period_key) on delete restrict,
			chain text not null references chain_rate_configs (chain) on delete restrict,
			revenue numeric(78, 18) not null,
			pool_percentage numeric(9, 8) not null,
			pool_amount numeric(78, 18) not null,
			distributed_amount numeric(78, 18) not null default 0,
			dust numeric(78, 18) not null default 0,
			recipients integer not null default 0,
			distribution_root text not null default '',
			status text not null default 'computed',
			created_at timestamp with time zone not null default current_timestamp,
			distributed_at timestamp with time zone,
			constraint distribution_pools_status check (status in ('computed', 'distributed')),
			constraint distribution_pools_conservation check (distributed_amount <= pool_amount)
		)`,
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
	return "202610010920_distributionPools"
}
