package chains

import (
	"fmt"
	"os"

	"github.com/Layr-Labs/rewards-engine/pkg/numbers"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Chains []*ChainSeed `yaml:"chains"`
}

// LoadChainSeeds reads a YAML file of the form:
//
//	chains:
//	  - chain: ethereum
//	    nativeAsset: ETH
//	    apy: "5"
//	    minDeposit: "0.01"
//	    priceFeedId: ethereum
func LoadChainSeeds(path string) ([]*ChainSeed, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain seed file: %w", err)
	}
	return ParseChainSeeds(contents)
}

func ParseChainSeeds(contents []byte) ([]*ChainSeed, error) {
	var f seedFile
	if err := yaml.Unmarshal(contents, &f); err != nil {
		return nil, fmt.Errorf("failed to parse chain seed file: %w", err)
	}
	for _, seed := range f.Chains {
		if _, err := seed.toChainRateConfig(); err != nil {
			return nil, err
		}
	}
	return f.Chains, nil
}

func (s *ChainSeed) toChainRateConfig() (*ChainRateConfig, error) {
	chain := normalizeChain(s.Chain)
	if chain == "" {
		return nil, fmt.Errorf("chain seed is missing a chain name")
	}
	if s.NativeAsset == "" {
		return nil, fmt.Errorf("chain seed '%s' is missing a native asset", chain)
	}

	family := s.AddressFamily
	if family == "" {
		f, err := FamilyForChain(chain)
		if err != nil {
			return nil, err
		}
		family = f
	}
	if !family.IsKnown() {
		return nil, fmt.Errorf("%w: '%s' for chain '%s'", ErrUnknownAddressFamily, family, chain)
	}

	apy := decimal.Zero
	if s.Apy != "" {
		parsed, err := numbers.ParseAmount(s.Apy)
		if err != nil {
			return nil, fmt.Errorf("chain seed '%s': %w", chain, err)
		}
		apy = parsed
	}
	if err := ValidateApy(apy); err != nil {
		return nil, fmt.Errorf("chain seed '%s': %w", chain, err)
	}

	minDeposit := decimal.Zero
	if s.MinDeposit != "" {
		parsed, err := numbers.ParseAmount(s.MinDeposit)
		if err != nil {
			return nil, fmt.Errorf("chain seed '%s': %w", chain, err)
		}
		minDeposit = parsed
	}

	return &ChainRateConfig{
		Chain:         chain,
		NativeAsset:   s.NativeAsset,
		AddressFamily: family,
		Apy:           apy,
		MinDeposit:    minDeposit,
		Active:        false,
		PriceFeedId:   s.PriceFeedId,
	}, nil
}
