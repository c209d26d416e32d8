package events

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"recycless/core/types"
	"recycless/crypto"
)

const (
	TypeRecycleCreated        = "recycle.created"
	TypeRecycleRewardConfig   = "recycle.reward_config"
	TypeRecycleStationUpdated = "recycle.station_updated"
	TypeRecycleBottles        = "recycle.bottles_recorded"
	TypeRecycleRewardQueued   = "recycle.reward_queued"
	TypeRecycleAssetOptIn     = "recycle.asset_opt_in"
)

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

// RecycleCreated is emitted once when the contract is instantiated.
type RecycleCreated struct {
	Admin common.Address
}

func (RecycleCreated) EventType() string { return TypeRecycleCreated }

func (e RecycleCreated) Event() *types.Event {
	return &types.Event{
		Type:       TypeRecycleCreated,
		Attributes: map[string]string{"admin": crypto.Format(e.Admin)},
	}
}

// RecycleRewardConfig records an admin change to the reward asset or rate.
type RecycleRewardConfig struct {
	Caller    common.Address
	AssetID   uint64
	PerBottle uint64
}

func (RecycleRewardConfig) EventType() string { return TypeRecycleRewardConfig }

func (e RecycleRewardConfig) Event() *types.Event {
	return &types.Event{
		Type: TypeRecycleRewardConfig,
		Attributes: map[string]string{
			"caller":    crypto.Format(e.Caller),
			"assetId":   u64(e.AssetID),
			"perBottle": u64(e.PerBottle),
		},
	}
}

// RecycleStationUpdated records a grant or revocation of the station role.
type RecycleStationUpdated struct {
	Caller  common.Address
	Account common.Address
	Station bool
}

func (RecycleStationUpdated) EventType() string { return TypeRecycleStationUpdated }

func (e RecycleStationUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeRecycleStationUpdated,
		Attributes: map[string]string{
			"caller":  crypto.Format(e.Caller),
			"account": crypto.Format(e.Account),
			"station": strconv.FormatBool(e.Station),
		},
	}
}

// RecycleBottles is emitted after the counters are updated.
type RecycleBottles struct {
	Caller    common.Address
	Receiver  common.Address
	Increment uint64
	UserTotal uint64
	Total     uint64
}

func (RecycleBottles) EventType() string { return TypeRecycleBottles }

func (e RecycleBottles) Event() *types.Event {
	return &types.Event{
		Type: TypeRecycleBottles,
		Attributes: map[string]string{
			"caller":    crypto.Format(e.Caller),
			"receiver":  crypto.Format(e.Receiver),
			"increment": u64(e.Increment),
			"userTotal": u64(e.UserTotal),
			"total":     u64(e.Total),
		},
	}
}

// RecycleRewardQueued is emitted when a reward transfer request is produced.
// It does not imply the transfer settled.
type RecycleRewardQueued struct {
	Receiver common.Address
	AssetID  uint64
	Amount   uint64
}

func (RecycleRewardQueued) EventType() string { return TypeRecycleRewardQueued }

func (e RecycleRewardQueued) Event() *types.Event {
	return &types.Event{
		Type: TypeRecycleRewardQueued,
		Attributes: map[string]string{
			"receiver": crypto.Format(e.Receiver),
			"assetId":  u64(e.AssetID),
			"amount":   u64(e.Amount),
		},
	}
}

// RecycleAssetOptIn is emitted when the contract requests to hold the reward
// asset.
type RecycleAssetOptIn struct {
	Caller  common.Address
	AssetID uint64
}

func (RecycleAssetOptIn) EventType() string { return TypeRecycleAssetOptIn }

func (e RecycleAssetOptIn) Event() *types.Event {
	return &types.Event{
		Type: TypeRecycleAssetOptIn,
		Attributes: map[string]string{
			"caller":  crypto.Format(e.Caller),
			"assetId": u64(e.AssetID),
		},
	}
}
