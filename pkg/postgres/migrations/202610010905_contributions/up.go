package _202610010905_contributions

import (
	"database/sql"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists contributions (
			id text primary key,
			user_handle text not null,
			wallet_address text not null,
			wallet_category text not null,
			chain text not null references chain_rate_configs (chain) on delete restrict,
			native_asset text not null,
			deposit_tx_hash text not null,
			principal numeric(78, 18) not null,
			status text not null default 'pending',
			rejection_reason text,
			rewards_earned numeric(78, 18) not null default 0,
			last_accrual_at timestamp with time zone,
			verified_at timestamp with time zone,
			created_at timestamp with time zone not null default current_timestamp,
			updated_at timestamp with time zone not null default current_timestamp,
			constraint contributions_principal_non_negative check (principal >= 0),
			constraint contributions_rewards_non_negative check (rewards_earned >= 0),
			constraint contributions_status check (status in ('pending', 'verified', 'rejected')),
			constraint uniq_contributions_chain_deposit unique (chain, deposit_tx_hash)
		)`,
		`create index if not exists idx_contributions_status on contributions (status)`,
		`create index if not exists idx_contributions_user_handle on contributions (user_handle)`,
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
	return "202610010905_contributions"
}
