package _202610010915_snapshots

import (
	"database/sql"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists snapshots (
			period_key text primary key,
			total_supply numeric(78, 18) not null,
			captured_at timestamp with time zone not null,
			created_at timestamp with time zone not null default current_timestamp,
			constraint snapshots_total_supply_non_negative check (total_supply >= 0)
		)`,
		`create table if not exists snapshot_holdings (
			period_key text not null references snapshots (period_key) on delete cascade,
			wallet_address text not null,
			user_handle text not null default '',
			holdings numeric(78, 18) not null,
			primary key (period_key, wallet_address),
			constraint snapshot_holdings_non_negative check (holdings >= 0)
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
	return "202610010915_snapshots"
}
