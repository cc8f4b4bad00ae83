package chains

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrChainNotFound        = errors.New("chain not found")
	ErrUnknownChain         = errors.New("unknown chain")
	ErrUnknownAddressFamily = errors.New("unknown address family")
	ErrBankWalletRequired   = errors.New("chain cannot be activated without a bank wallet address")
)

var (
	MinApy = decimal.Zero
	MaxApy = decimal.NewFromInt(100)
)

// ChainRateConfig is the per-chain accrual configuration. The only writer is the
// administrative surface.
type ChainRateConfig struct {
	Chain             string          `gorm:"primaryKey" json:"chain"`
	NativeAsset       string          `json:"nativeAsset"`
	AddressFamily     AddressFamily   `json:"addressFamily"`
	Apy               decimal.Decimal `gorm:"type:numeric" json:"apy"`
	MinDeposit        decimal.Decimal `gorm:"type:numeric" json:"minDeposit"`
	Active            bool            `json:"active"`
	BankWalletAddress *string         `json:"bankWalletAddress"`
	PriceFeedId       string          `json:"priceFeedId"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func (ChainRateConfig) TableName() string {
	return "chain_rate_configs"
}

func (c *ChainRateConfig) HasBankWallet() bool {
	return c.BankWalletAddress != nil && *c.BankWalletAddress != ""
}

// ValidateBankWallet checks address against this chain's address family.
func (c *ChainRateConfig) ValidateBankWallet(address string) error {
	return ValidateAddress(c.AddressFamily, address)
}

// ChainSeed is one entry of the chains seed file.
type ChainSeed struct {
	Chain         string        `yaml:"chain"`
	NativeAsset   string        `yaml:"nativeAsset"`
	AddressFamily AddressFamily `yaml:"addressFamily"`
	Apy           string        `yaml:"apy"`
	MinDeposit    string        `yaml:"minDeposit"`
	PriceFeedId   string        `yaml:"priceFeedId"`
}
