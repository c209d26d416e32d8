package recycle

import (
	"github.com/ethereum/go-ethereum/common"

	"recycless/core/state"
)

const (
	// DefaultRewardPerBottle is written at creation.
	DefaultRewardPerBottle uint64 = 1
)

// Config is the contract's global configuration record, loaded once per call
// and passed to the components that need it.
type Config struct {
	Admin           common.Address
	RewardAssetID   uint64
	RewardPerBottle uint64
}

// RewardsEnabled reports whether reward issuance is configured.
func (c *Config) RewardsEnabled() bool {
	return c != nil && c.RewardAssetID != 0
}

// LoadConfig reads the configuration record. ErrNotCreated is returned until
// create has run.
func LoadConfig(r state.Reader) (*Config, error) {
	var admin common.Address
	ok, err := r.Get(state.ScopeGlobal, common.Address{}, keyAdmin, &admin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotCreated
	}
	asset, err := GlobalUint64(keyRewardAssetID).GetOr(r, 0)
	if err != nil {
		return nil, err
	}
	rate, err := GlobalUint64(keyRewardPerBottle).GetOr(r, DefaultRewardPerBottle)
	if err != nil {
		return nil, err
	}
	return &Config{Admin: admin, RewardAssetID: asset, RewardPerBottle: rate}, nil
}

func storeRewardConfig(w state.Store, assetID, perBottle uint64) error {
	if err := GlobalUint64(keyRewardAssetID).Set(w, assetID); err != nil {
		return err
	}
	return GlobalUint64(keyRewardPerBottle).Set(w, perBottle)
}
