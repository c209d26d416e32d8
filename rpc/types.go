package rpc

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"recycless/core/types"
	"recycless/crypto"
	"recycless/native/bank"
	"recycless/native/recycle"
)

// ConfigResult mirrors the contract configuration record. Numbers are decimal
// strings.
type ConfigResult struct {
	Admin           string    `json:"admin"`
	RewardAssetID   types.U64 `json:"rewardAssetId"`
	RewardPerBottle types.U64 `json:"rewardPerBottle"`
	RewardsEnabled  bool      `json:"rewardsEnabled"`
}

func configResult(cfg *recycle.Config) ConfigResult {
	return ConfigResult{
		Admin:           crypto.Format(cfg.Admin),
		RewardAssetID:   types.U64(cfg.RewardAssetID),
		RewardPerBottle: types.U64(cfg.RewardPerBottle),
		RewardsEnabled:  cfg.RewardsEnabled(),
	}
}

type StationResult struct {
	Account string `json:"account"`
	Station bool   `json:"station"`
}

type BalanceResult struct {
	Account string    `json:"account"`
	AssetID types.U64 `json:"assetId"`
	Amount  types.U64 `json:"amount"`
	OptedIn bool      `json:"optedIn"`
}

// TransferResult is one asset ledger audit record with bech32 accounts.
type TransferResult struct {
	ID        string    `json:"id"`
	AssetID   types.U64 `json:"assetId"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	Amount    types.U64 `json:"amount"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func transferResult(rec bank.TransferRecord) TransferResult {
	assetID, _ := strconv.ParseUint(rec.AssetID, 10, 64)
	amount, _ := strconv.ParseUint(rec.Amount, 10, 64)
	var from string
	if rec.Kind != bank.KindCredit {
		from = crypto.Format(common.HexToAddress(rec.Sender))
	}
	return TransferResult{
		ID:        rec.ID.String(),
		AssetID:   types.U64(assetID),
		From:      from,
		To:        crypto.Format(common.HexToAddress(rec.Recipient)),
		Amount:    types.U64(amount),
		Kind:      rec.Kind,
		Status:    rec.Status,
		Reason:    rec.Reason,
		CreatedAt: rec.CreatedAt,
	}
}
