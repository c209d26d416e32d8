package recycle

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"recycless/core/state"
	"recycless/core/types"
	"recycless/storage"
)

var (
	admin   = common.HexToAddress("0x000000000000000000000000000000000000ad01")
	station = common.HexToAddress("0x000000000000000000000000000000000000057a")
	userU   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	userV   = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

type harness struct {
	t      *testing.T
	db     *storage.MemDB
	mgr    *state.Manager
	engine *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return &harness{t: t, db: db, mgr: state.NewManager(db), engine: NewEngine()}
}

// call runs op against a fresh overlay and commits only on success, the same
// way the contract host does.
func (h *harness) call(op func(st state.Store) (*Outcome, error)) (*Outcome, error) {
	ov := h.mgr.Begin()
	out, err := op(ov)
	if err != nil {
		ov.Discard()
		return nil, err
	}
	if err := ov.Commit(); err != nil {
		h.t.Fatalf("commit: %v", err)
	}
	return out, nil
}

func (h *harness) mustCall(op func(st state.Store) (*Outcome, error)) *Outcome {
	h.t.Helper()
	out, err := h.call(op)
	if err != nil {
		h.t.Fatalf("unexpected error: %v", err)
	}
	return out
}

func (h *harness) create() {
	h.t.Helper()
	h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.Create(st, admin) })
}

func (h *harness) snapshot() map[string]string {
	h.t.Helper()
	snap := make(map[string]string)
	for _, k := range h.db.Keys() {
		v, err := h.db.Get([]byte(k))
		if err != nil {
			h.t.Fatalf("snapshot get: %v", err)
		}
		snap[k] = string(v)
	}
	return snap
}

func (h *harness) bottleCount() uint64 {
	h.t.Helper()
	count, err := h.engine.BottleCount(h.mgr)
	if err != nil {
		h.t.Fatalf("bottle count: %v", err)
	}
	return count
}

func (h *harness) userCount(id common.Address) uint64 {
	h.t.Helper()
	count, err := h.engine.UserCount(h.mgr, id)
	if err != nil {
		h.t.Fatalf("user count: %v", err)
	}
	return count
}

func (h *harness) expectRejected(kind error, op func(st state.Store) (*Outcome, error)) {
	h.t.Helper()
	before := h.snapshot()
	_, err := h.call(op)
	if !errors.Is(err, kind) {
		h.t.Fatalf("expected %v, got %v", kind, err)
	}
	if after := h.snapshot(); !reflect.DeepEqual(before, after) {
		h.t.Fatalf("rejected call mutated state")
	}
}

func TestCreateInitialisesConfig(t *testing.T) {
	h := newHarness(t)
	out := h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.Create(st, admin) })
	if len(out.Events) != 1 || out.Events[0].EventType() != "recycle.created" {
		t.Fatalf("unexpected events: %+v", out.Events)
	}
	cfg, err := h.engine.Config(h.mgr)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	want := &Config{Admin: admin, RewardAssetID: 0, RewardPerBottle: 1}
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("config = %+v, want %+v", cfg, want)
	}
	if h.bottleCount() != 0 {
		t.Fatalf("expected zero bottle count")
	}

	h.expectRejected(ErrPrecondition, func(st state.Store) (*Outcome, error) { return h.engine.Create(st, userU) })
	cfg, _ = h.engine.Config(h.mgr)
	if cfg.Admin != admin {
		t.Fatalf("admin must never be reassigned")
	}
}

func TestOperationsBeforeCreate(t *testing.T) {
	h := newHarness(t)
	_, err := h.call(func(st state.Store) (*Outcome, error) { return h.engine.AddBottle(st, userU) })
	if err != ErrNotCreated {
		t.Fatalf("expected ErrNotCreated, got %v", err)
	}
	if h.bottleCount() != 0 || h.userCount(userU) != 0 {
		t.Fatalf("views must default to zero before create")
	}
}

func TestAddBottleTwice(t *testing.T) {
	h := newHarness(t)
	h.create()
	for i := 0; i < 2; i++ {
		h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.AddBottle(st, userU) })
	}
	if got := h.bottleCount(); got != 2 {
		t.Fatalf("bottle_count = %d, want 2", got)
	}
	if got := h.userCount(userU); got != 2 {
		t.Fatalf("user_count = %d, want 2", got)
	}
}

func TestAddBottleWithoutRewardIssuesNoTransfer(t *testing.T) {
	h := newHarness(t)
	h.create()
	out := h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.AddBottle(st, userU) })
	if len(out.Transfers) != 0 {
		t.Fatalf("expected no transfer, got %+v", out.Transfers)
	}
	if out.Count != 1 || h.userCount(userU) != 1 {
		t.Fatalf("counters not incremented: count=%d user=%d", out.Count, h.userCount(userU))
	}
}

func TestAddBottleIssuesProportionalReward(t *testing.T) {
	h := newHarness(t)
	h.create()
	h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.SetRewardConfig(st, admin, 42, 5) })

	before := h.userCount(userU)
	out := h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.AddBottle(st, userU) })
	want := []types.AssetTransfer{{AssetID: 42, Amount: 5, Recipient: userU}}
	if !reflect.DeepEqual(out.Transfers, want) {
		t.Fatalf("transfers = %+v, want %+v", out.Transfers, want)
	}
	if got := h.userCount(userU) - before; got != 1 {
		t.Fatalf("user_count delta = %d, want 1", got)
	}
}

func TestStationScenario(t *testing.T) {
	h := newHarness(t)
	h.create()
	h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.SetRewardConfig(st, admin, 7, 2) })
	h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.SetStation(st, admin, station, true) })

	out := h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.AddBottlesFor(st, station, userU, 3) })
	if out.Count != 3 || h.bottleCount() != 3 {
		t.Fatalf("bottle_count = %d, want 3", h.bottleCount())
	}
	if h.userCount(userU) != 3 {
		t.Fatalf("user_count[U] = %d, want 3", h.userCount(userU))
	}
	if h.userCount(station) != 0 {
		t.Fatalf("station must not be credited when recording for another user")
	}
	want := []types.AssetTransfer{{AssetID: 7, Amount: 6, Recipient: userU}}
	if !reflect.DeepEqual(out.Transfers, want) {
		t.Fatalf("transfers = %+v, want %+v", out.Transfers, want)
	}

	own := h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.AddBottles(st, station, 4) })
	if own.Count != 7 || h.userCount(station) != 4 {
		t.Fatalf("add_bottles: count=%d station=%d", own.Count, h.userCount(station))
	}
}

func TestAdminOnlyOperations(t *testing.T) {
	h := newHarness(t)
	h.create()
	h.expectRejected(ErrAuthorization, func(st state.Store) (*Outcome, error) {
		return h.engine.SetRewardConfig(st, userU, 9, 9)
	})
	h.expectRejected(ErrAuthorization, func(st state.Store) (*Outcome, error) {
		return h.engine.SetStation(st, userU, userU, true)
	})
	// Admin check precedes rate validation.
	_, err := h.call(func(st state.Store) (*Outcome, error) { return h.engine.SetRewardConfig(st, userU, 9, 0) })
	if err != ErrNotAdmin {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	h.expectRejected(ErrValidation, func(st state.Store) (*Outcome, error) {
		return h.engine.SetRewardConfig(st, admin, 9, 0)
	})
}

func TestStationGating(t *testing.T) {
	h := newHarness(t)
	h.create()
	h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.AddBottle(st, userV) })

	h.expectRejected(ErrAuthorization, func(st state.Store) (*Outcome, error) {
		return h.engine.AddBottles(st, userU, 5)
	})
	h.expectRejected(ErrAuthorization, func(st state.Store) (*Outcome, error) {
		return h.engine.AddBottlesFor(st, userU, userV, 5)
	})
	// Station check precedes amount validation.
	_, err := h.call(func(st state.Store) (*Outcome, error) { return h.engine.AddBottles(st, userU, 0) })
	if err != ErrNotStation {
		t.Fatalf("expected ErrNotStation, got %v", err)
	}

	h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.SetStation(st, admin, station, true) })
	h.expectRejected(ErrValidation, func(st state.Store) (*Outcome, error) {
		return h.engine.AddBottles(st, station, 0)
	})
	h.expectRejected(ErrValidation, func(st state.Store) (*Outcome, error) {
		return h.engine.AddBottlesFor(st, station, userV, 0)
	})

	h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.SetStation(st, admin, station, false) })
	h.expectRejected(ErrAuthorization, func(st state.Store) (*Outcome, error) {
		return h.engine.AddBottles(st, station, 1)
	})
}

func TestUserCountOverflowAbortsCall(t *testing.T) {
	h := newHarness(t)
	h.create()
	h.mustCall(func(st state.Store) (*Outcome, error) {
		if err := userCount.Set(st, userU, math.MaxUint64); err != nil {
			return nil, err
		}
		return &Outcome{}, GlobalUint64(keyBottleCount).Set(st, math.MaxUint64)
	})

	h.expectRejected(ErrOverflow, func(st state.Store) (*Outcome, error) { return h.engine.AddBottle(st, userU) })
	if h.userCount(userU) != math.MaxUint64 || h.bottleCount() != math.MaxUint64 {
		t.Fatalf("counters changed after overflow")
	}
}

func TestRewardOverflowAbortsCall(t *testing.T) {
	h := newHarness(t)
	h.create()
	h.mustCall(func(st state.Store) (*Outcome, error) {
		return h.engine.SetRewardConfig(st, admin, 1, math.MaxUint64)
	})
	h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.SetStation(st, admin, station, true) })

	h.expectRejected(ErrOverflow, func(st state.Store) (*Outcome, error) {
		return h.engine.AddBottlesFor(st, station, userU, 2)
	})
	if h.bottleCount() != 0 || h.userCount(userU) != 0 {
		t.Fatalf("counters changed after reward overflow")
	}
	// A single bottle still fits.
	out := h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.AddBottle(st, userU) })
	if out.Transfers[0].Amount != math.MaxUint64 {
		t.Fatalf("unexpected reward amount %d", out.Transfers[0].Amount)
	}
}

func TestOptInRewardAsset(t *testing.T) {
	h := newHarness(t)
	h.create()
	h.expectRejected(ErrPrecondition, func(st state.Store) (*Outcome, error) {
		return h.engine.OptInRewardAsset(st, admin)
	})

	h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.SetRewardConfig(st, admin, 11, 3) })
	out := h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.OptInRewardAsset(st, admin) })
	if len(out.Transfers) != 1 || !out.Transfers[0].IsOptIn() || out.Transfers[0].AssetID != 11 {
		t.Fatalf("unexpected opt-in request: %+v", out.Transfers)
	}
}

func TestBottleCountEqualsSumOfUserCounts(t *testing.T) {
	h := newHarness(t)
	h.create()
	h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.SetStation(st, admin, station, true) })

	users := []common.Address{userU, userV, station, admin}
	for i := 0; i < 40; i++ {
		u := users[i%len(users)]
		amount := uint64(i%7 + 1)
		switch i % 3 {
		case 0:
			h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.AddBottle(st, u) })
		case 1:
			h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.AddBottlesFor(st, station, u, amount) })
		default:
			// Non-station writes are rejected and must not disturb the sum.
			_, _ = h.call(func(st state.Store) (*Outcome, error) { return h.engine.AddBottles(st, userU, amount) })
		}
		var sum uint64
		for _, id := range users {
			sum += h.userCount(id)
		}
		if sum != h.bottleCount() {
			t.Fatalf("step %d: sum(user_count)=%d bottle_count=%d", i, sum, h.bottleCount())
		}
	}
}

func TestViewsAreReadOnly(t *testing.T) {
	h := newHarness(t)
	h.create()
	h.mustCall(func(st state.Store) (*Outcome, error) { return h.engine.AddBottle(st, userU) })
	before := h.snapshot()
	for i := 0; i < 5; i++ {
		if h.bottleCount() != 1 || h.userCount(userU) != 1 || h.userCount(userV) != 0 {
			t.Fatalf("views returned unexpected values")
		}
	}
	if !reflect.DeepEqual(before, h.snapshot()) {
		t.Fatalf("views mutated state")
	}
}
