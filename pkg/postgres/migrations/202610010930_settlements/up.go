package _202610010930_settlements

import (
	"database/sql"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists settlements (
			transaction_ref text primary key,
			user_handle text,
			reward_count integer not null,
			amount numeric(78, 18) not null,
			wallet_address text,
			settled_at timestamp with time zone not null,
			constraint settlements_reward_count_positive check (reward_count > 0)
		)`,
		// backfill payouts recorded before the settlements table existed
		`insert into settlements (transaction_ref, user_handle, reward_count, amount, wallet_address, settled_at)
			select
				claim_transaction_ref,
				case when count(distinct user_handle) = 1 then min(user_handle) end,
				count(*),
				sum(amount),
				min(claim_wallet_address),
				min(claimed_at)
			from reward_records
			where status = 'withdrawn' and claim_transaction_ref is not null
			group by claim_transaction_ref
			on conflict (transaction_ref) do nothing`,
		`create index if not exists idx_reward_records_claim_transaction_ref
			on reward_records (claim_transaction_ref) where claim_transaction_ref is not null`,
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
	return "202610010930_settlements"
}
