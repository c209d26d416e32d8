package recycle

import (
	"github.com/ethereum/go-ethereum/common"

	"recycless/core/events"
	"recycless/core/state"
	"recycless/core/types"
)

// Outcome is what a mutating operation hands back to the call boundary. The
// boundary commits state, publishes Events and dispatches Transfers only when
// the operation returned a nil error.
type Outcome struct {
	// Count is the global bottle count after the call, when the operation
	// returns one.
	Count     uint64
	Transfers []types.AssetTransfer
	Events    []events.Event
}

func (o *Outcome) emit(evt events.Event) {
	o.Events = append(o.Events, evt)
}

func (o *Outcome) transfer(t *types.AssetTransfer) {
	if t != nil {
		o.Transfers = append(o.Transfers, *t)
	}
}

// Engine sequences guard, ledger and reward issuer for each public operation.
// It holds no state of its own; every call receives the store it must operate
// on. Callers are expected to run each operation against a fresh overlay and
// discard it when an error is returned.
type Engine struct{}

// NewEngine constructs the recycle engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Create initialises the global configuration with caller as admin. It fails if
// the contract was already created.
func (e *Engine) Create(st state.Store, caller common.Address) (*Outcome, error) {
	if _, err := LoadConfig(st); err == nil {
		return nil, ErrAlreadyCreated
	} else if err != ErrNotCreated {
		return nil, err
	}
	if err := st.Put(state.ScopeGlobal, common.Address{}, keyAdmin, caller); err != nil {
		return nil, err
	}
	if err := storeRewardConfig(st, 0, DefaultRewardPerBottle); err != nil {
		return nil, err
	}
	if err := GlobalUint64(keyBottleCount).Set(st, 0); err != nil {
		return nil, err
	}
	out := &Outcome{}
	out.emit(events.RecycleCreated{Admin: caller})
	return out, nil
}

// SetRewardConfig sets the reward asset and per-bottle rate. Admin only.
func (e *Engine) SetRewardConfig(st state.Store, caller common.Address, assetID, perBottle uint64) (*Outcome, error) {
	cfg, err := LoadConfig(st)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(cfg, caller); err != nil {
		return nil, err
	}
	if perBottle == 0 {
		return nil, ErrInvalidRate
	}
	if err := storeRewardConfig(st, assetID, perBottle); err != nil {
		return nil, err
	}
	out := &Outcome{}
	out.emit(events.RecycleRewardConfig{Caller: caller, AssetID: assetID, PerBottle: perBottle})
	return out, nil
}

// SetStation grants or revokes the station role for account. Admin only.
func (e *Engine) SetStation(st state.Store, caller, account common.Address, flag bool) (*Outcome, error) {
	cfg, err := LoadConfig(st)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(cfg, caller); err != nil {
		return nil, err
	}
	var value uint64
	if flag {
		value = 1
	}
	if err := isStation.Set(st, account, value); err != nil {
		return nil, err
	}
	out := &Outcome{}
	out.emit(events.RecycleStationUpdated{Caller: caller, Account: account, Station: flag})
	return out, nil
}

// OptInRewardAsset requests the contract account opt in to the configured
// reward asset. Any caller may trigger it once the asset is set.
func (e *Engine) OptInRewardAsset(st state.Reader, caller common.Address) (*Outcome, error) {
	cfg, err := LoadConfig(st)
	if err != nil {
		return nil, err
	}
	req, err := OptInRequest(cfg)
	if err != nil {
		return nil, err
	}
	out := &Outcome{}
	out.transfer(req)
	out.emit(events.RecycleAssetOptIn{Caller: caller, AssetID: cfg.RewardAssetID})
	return out, nil
}

// AddBottle records a single bottle for the caller.
func (e *Engine) AddBottle(st state.Store, caller common.Address) (*Outcome, error) {
	cfg, err := LoadConfig(st)
	if err != nil {
		return nil, err
	}
	return e.incrementAndReward(st, cfg, caller, caller, 1)
}

// AddBottles records amount bottles for the calling station.
func (e *Engine) AddBottles(st state.Store, caller common.Address, amount uint64) (*Outcome, error) {
	cfg, err := LoadConfig(st)
	if err != nil {
		return nil, err
	}
	if err := requireStation(st, caller); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	return e.incrementAndReward(st, cfg, caller, caller, amount)
}

// AddBottlesFor records amount bottles for user on behalf of the calling
// station.
func (e *Engine) AddBottlesFor(st state.Store, caller, user common.Address, amount uint64) (*Outcome, error) {
	cfg, err := LoadConfig(st)
	if err != nil {
		return nil, err
	}
	if err := requireStation(st, caller); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	return e.incrementAndReward(st, cfg, caller, user, amount)
}

func (e *Engine) incrementAndReward(st state.Store, cfg *Config, caller, receiver common.Address, increment uint64) (*Outcome, error) {
	// The reward product is checked before the counters move so an overflow
	// aborts with nothing written.
	reward, err := RewardFor(cfg, receiver, increment)
	if err != nil {
		return nil, err
	}
	totals, err := Record(st, receiver, increment)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Count: totals.Total}
	out.emit(events.RecycleBottles{
		Caller:    caller,
		Receiver:  receiver,
		Increment: increment,
		UserTotal: totals.UserTotal,
		Total:     totals.Total,
	})
	if reward != nil {
		out.transfer(reward)
		out.emit(events.RecycleRewardQueued{Receiver: receiver, AssetID: reward.AssetID, Amount: reward.Amount})
	}
	return out, nil
}

// BottleCount returns the global total.
func (e *Engine) BottleCount(r state.Reader) (uint64, error) {
	return BottleCount(r)
}

// UserCount returns the count recorded for account.
func (e *Engine) UserCount(r state.Reader, account common.Address) (uint64, error) {
	return UserCount(r, account)
}

// Config returns the current configuration record.
func (e *Engine) Config(r state.Reader) (*Config, error) {
	return LoadConfig(r)
}

// IsStation reports the station flag for account.
func (e *Engine) IsStation(r state.Reader, account common.Address) (bool, error) {
	return IsStation(r, account)
}
