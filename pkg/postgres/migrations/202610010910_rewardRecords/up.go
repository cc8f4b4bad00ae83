package _202610010910_rewardRecords

import (
	"database/sql"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists reward_records (
			id text primary key,
			contribution_id text references contributions (id) on delete restrict,
			source text not null,
			period_key text,
			user_handle text not null,
			wallet_address text not null,
			chain text not null references chain_rate_configs (chain) on delete restrict,
			amount numeric(78, 18) not null,
			stable_amount numeric(78, 18) not null default 0,
			period_start timestamp with time zone not null,
			period_end timestamp with time zone not null,
			apy numeric(9, 6) not null default 0,
			status text not null default 'pending',
			computed_at timestamp with time zone not null default current_timestamp,
			claim_transaction_ref text,
			claim_wallet_address text,
			claim_wallet_category text,
			claimed_at timestamp with time zone,
			constraint reward_records_amount_non_negative check (amount >= 0),
			constraint reward_records_period check (period_end >= period_start),
			constraint reward_records_source check (source in ('accrual', 'distribution')),
			constraint reward_records_status check (status in ('pending', 'withdrawn')),
			constraint reward_records_source_reference check (
				(source = 'accrual' and contribution_id is not null)
				or (source = 'distribution' and period_key is not null)
			)
		)`,
		`create unique index if not exists uniq_reward_records_contribution_period
			on reward_records (contribution_id, period_start) where contribution_id is not null`,
		`create unique index if not exists uniq_reward_records_distribution_wallet
			on reward_records (period_key, wallet_address) where source = 'distribution'`,
		`create index if not exists idx_reward_records_status on reward_records (status)`,
		`create index if not exists idx_reward_records_user_handle on reward_records (user_handle)`,
		`create index if not exists idx_reward_records_chain on reward_records (chain)`,
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
	return "202610010910_rewardRecords"
}
