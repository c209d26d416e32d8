package recycle

import (
	"github.com/ethereum/go-ethereum/common"

	"recycless/core/types"
)

// RewardFor computes the transfer owed to receiver for increment units. A nil
// transfer with a nil error means rewards are not configured.
func RewardFor(cfg *Config, receiver common.Address, increment uint64) (*types.AssetTransfer, error) {
	if !cfg.RewardsEnabled() {
		return nil, nil
	}
	amount, err := checkedMul(increment, cfg.RewardPerBottle)
	if err != nil {
		return nil, err
	}
	return &types.AssetTransfer{
		AssetID:   cfg.RewardAssetID,
		Amount:    amount,
		Recipient: receiver,
	}, nil
}

// OptInRequest builds the zero-amount self transfer that lets the contract
// account hold the reward asset.
func OptInRequest(cfg *Config) (*types.AssetTransfer, error) {
	if !cfg.RewardsEnabled() {
		return nil, ErrRewardAssetUnset
	}
	return &types.AssetTransfer{
		AssetID:       cfg.RewardAssetID,
		Amount:        0,
		SelfRecipient: true,
	}, nil
}
