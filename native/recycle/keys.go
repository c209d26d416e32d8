package recycle

import (
	"github.com/ethereum/go-ethereum/common"

	"recycless/core/state"
)

const (
	keyAdmin           = "admin"
	keyRewardAssetID   = "reward_asset_id"
	keyRewardPerBottle = "reward_per_bottle"
	keyBottleCount     = "bottle_count"
)

var (
	userCount = LocalUint64("user_count")
	isStation = LocalUint64("is_station")
)

// GlobalUint64 is a process-wide unsigned counter or setting.
type GlobalUint64 string

// Get returns the stored value and whether it was present.
func (k GlobalUint64) Get(r state.Reader) (uint64, bool, error) {
	var v uint64
	ok, err := r.Get(state.ScopeGlobal, common.Address{}, string(k), &v)
	return v, ok, err
}

// GetOr returns def when the entry has never been written.
func (k GlobalUint64) GetOr(r state.Reader, def uint64) (uint64, error) {
	v, ok, err := k.Get(r)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

func (k GlobalUint64) Set(w state.Store, v uint64) error {
	return w.Put(state.ScopeGlobal, common.Address{}, string(k), v)
}

// LocalUint64 is a sparse per-identity value. Identities that never had the
// entry written read as the caller-supplied default.
type LocalUint64 string

// Has distinguishes an unset entry from one explicitly written as zero.
func (k LocalUint64) Has(r state.Reader, id common.Address) (bool, error) {
	return r.Get(state.ScopeLocal, id, string(k), nil)
}

func (k LocalUint64) GetOr(r state.Reader, id common.Address, def uint64) (uint64, error) {
	var v uint64
	ok, err := r.Get(state.ScopeLocal, id, string(k), &v)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

func (k LocalUint64) Set(w state.Store, id common.Address, v uint64) error {
	return w.Put(state.ScopeLocal, id, string(k), v)
}
