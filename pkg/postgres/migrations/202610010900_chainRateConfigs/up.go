package _202610010900_chainRateConfigs

import (
	"database/sql"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists chain_rate_configs (
			chain text primary key,
			native_asset text not null,
			address_family text not null,
			apy numeric(9, 6) not null default 0,
			min_deposit numeric(78, 18) not null default 0,
			active boolean not null default false,
			bank_wallet_address text,
			price_feed_id text not null default '',
			created_at timestamp with time zone not null default current_timestamp,
			updated_at timestamp with time zone not null default current_timestamp,
			constraint chain_rate_configs_apy_range check (apy >= 0 and apy <= 100),
			constraint chain_rate_configs_active_requires_wallet check (active = false or bank_wallet_address is not null)
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
	return "202610010900_chainRateConfigs"
}
