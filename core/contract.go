package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"recycless/core/events"
	"recycless/core/state"
	"recycless/core/types"
	"recycless/crypto"
	modcommon "recycless/native/common"
	"recycless/native/recycle"
	"recycless/observability"
	"recycless/storage"
)

const nonceKey = "nonce"

var (
	ErrInvalidSignature = errors.New("core: invalid call signature")
	ErrWrongNetwork     = errors.New("core: call signed for a different network")
	ErrReadOnlyCall     = errors.New("core: read-only method submitted as a call")
	ErrUnknownMethod    = fmt.Errorf("%w: unknown method", recycle.ErrValidation)
	ErrInvalidArgs      = fmt.Errorf("%w: malformed call arguments", recycle.ErrValidation)
)

// NonceError reports a call whose nonce does not match the caller's next
// expected nonce.
type NonceError struct {
	Expected uint64
	Got      uint64
}

func (e *NonceError) Error() string {
	return fmt.Sprintf("core: invalid nonce: expected %d, got %d", e.Expected, e.Got)
}

// Options configures a Contract.
type Options struct {
	Network string
	Pauses  modcommon.PauseView
	Emitter events.Emitter
	Logger  *slog.Logger
}

// Receipt describes a committed call.
type Receipt struct {
	Method    types.Method   `json:"method"`
	Caller    string         `json:"caller"`
	Nonce     uint64         `json:"nonce"`
	Count     *types.U64     `json:"count,omitempty"`
	Events    []*types.Event `json:"events"`
	Transfers []Dispatch     `json:"transfers"`
	Dropped   []Dispatch     `json:"dropped,omitempty"`
}

// Contract hosts the recycle engine. Every call runs under a single lock
// against a fresh overlay that is committed in one batch when the operation
// succeeds and discarded otherwise.
type Contract struct {
	mu         sync.Mutex
	state      *state.Manager
	engine     *recycle.Engine
	dispatcher *Dispatcher
	opts       Options
}

// NewContract wires the engine to db. Transfers are handed to dispatcher after
// commit; a nil dispatcher discards them.
func NewContract(db storage.Database, dispatcher *Dispatcher, opts Options) *Contract {
	if opts.Emitter == nil {
		opts.Emitter = events.NoopEmitter{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Contract{
		state:      state.NewManager(db),
		engine:     recycle.NewEngine(),
		dispatcher: dispatcher,
		opts:       opts,
	}
}

// Network returns the network identifier calls must be signed for.
func (c *Contract) Network() string {
	return c.opts.Network
}

// Init runs create with creator as admin unless the contract already exists.
// It is the genesis path and does not consume a nonce.
func (c *Contract) Init(ctx context.Context, creator common.Address) error {
	out, err := c.genesis(creator)
	if err != nil || out == nil {
		return err
	}
	c.publish(out)
	c.opts.Logger.Info("recycle contract created", slog.String("admin", crypto.Format(creator)))
	return nil
}

func (c *Contract) genesis(creator common.Address) (*recycle.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.engine.Config(c.state); err == nil {
		return nil, nil
	} else if !errors.Is(err, recycle.ErrNotCreated) {
		return nil, err
	}
	ov := c.state.Begin()
	out, err := c.engine.Create(ov, creator)
	if err != nil {
		ov.Discard()
		return nil, err
	}
	if err := ov.Commit(); err != nil {
		return nil, fmt.Errorf("commit genesis: %w", err)
	}
	return out, nil
}

// Execute verifies and applies a signed call. A call that passes signature,
// network and nonce checks consumes the caller's nonce even when the
// operation itself aborts, so a rejected call cannot be replayed.
func (c *Contract) Execute(ctx context.Context, call *types.Call) (*Receipt, error) {
	start := time.Now()
	if call == nil {
		return nil, ErrInvalidSignature
	}
	method := string(call.Method)
	caller, err := call.From()
	if err != nil {
		observability.Recycle().ObserveCall(method, "bad_signature", time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if call.Network != c.opts.Network {
		observability.Recycle().ObserveCall(method, "wrong_network", time.Since(start))
		return nil, fmt.Errorf("%w: %q", ErrWrongNetwork, call.Network)
	}
	if call.Method.ReadOnly() {
		observability.Recycle().ObserveCall(method, "invalid", time.Since(start))
		return nil, ErrReadOnlyCall
	}

	out, err := c.commit(caller, call, start)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		Method: call.Method,
		Caller: crypto.Format(caller),
		Nonce:  call.Nonce,
	}
	switch call.Method {
	case types.MethodAddBottle, types.MethodAddBottles, types.MethodAddBottlesFor:
		count := types.U64(out.Count)
		receipt.Count = &count
	}
	receipt.Events, receipt.Transfers, receipt.Dropped = c.publish(out)
	c.observe(call.Method, out)
	observability.Recycle().ObserveCall(method, "ok", time.Since(start))
	c.opts.Logger.Debug("recycle call committed",
		slog.String("method", method),
		slog.String("caller", crypto.Format(caller)),
		slog.Uint64("nonce", call.Nonce),
		slog.Int("transfers", len(receipt.Transfers)),
		slog.Int("dropped", len(receipt.Dropped)))
	return receipt, nil
}

// commit runs the nonce check and the operation under the contract lock.
// Effects in the returned outcome are published by the caller once the lock
// is released.
func (c *Contract) commit(caller common.Address, call *types.Call, start time.Time) (*recycle.Outcome, error) {
	method := string(call.Method)
	c.mu.Lock()
	defer c.mu.Unlock()

	expected, err := c.nonce(c.state, caller)
	if err != nil {
		return nil, err
	}
	if call.Nonce != expected {
		observability.Recycle().ObserveCall(method, "bad_nonce", time.Since(start))
		return nil, &NonceError{Expected: expected, Got: call.Nonce}
	}

	ov := c.state.Begin()
	out, err := c.apply(ov, caller, call)
	if err != nil {
		ov.Discard()
		if bumpErr := c.bumpNonce(caller, expected); bumpErr != nil {
			return nil, bumpErr
		}
		observability.Recycle().ObserveCall(method, Outcome(err), time.Since(start))
		c.opts.Logger.Info("recycle call aborted",
			slog.String("method", method),
			slog.String("caller", crypto.Format(caller)),
			slog.Uint64("nonce", call.Nonce),
			slog.Any("error", err))
		return nil, err
	}
	if err := ov.Put(state.ScopeSystem, caller, nonceKey, expected+1); err != nil {
		ov.Discard()
		return nil, err
	}
	if err := ov.Commit(); err != nil {
		return nil, fmt.Errorf("commit call: %w", err)
	}
	return out, nil
}

func (c *Contract) apply(ov *state.Overlay, caller common.Address, call *types.Call) (*recycle.Outcome, error) {
	if err := modcommon.Guard(c.opts.Pauses, modcommon.ModuleRecycle); err != nil {
		return nil, err
	}
	switch call.Method {
	case types.MethodCreate:
		return c.engine.Create(ov, caller)
	case types.MethodSetRewardConfig:
		var args types.SetRewardConfigArgs
		if err := types.DecodeArgs(call.Args, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
		return c.engine.SetRewardConfig(ov, caller, uint64(args.AssetID), uint64(args.PerBottle))
	case types.MethodSetStation:
		var args types.SetStationArgs
		if err := types.DecodeArgs(call.Args, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
		account, err := crypto.ParseIdentity(args.Account)
		if err != nil {
			return nil, fmt.Errorf("%w: account: %v", ErrInvalidArgs, err)
		}
		return c.engine.SetStation(ov, caller, account, args.Station)
	case types.MethodOptInRewardAsset:
		return c.engine.OptInRewardAsset(ov, caller)
	case types.MethodAddBottle:
		return c.engine.AddBottle(ov, caller)
	case types.MethodAddBottles:
		var args types.AddBottlesArgs
		if err := types.DecodeArgs(call.Args, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
		return c.engine.AddBottles(ov, caller, uint64(args.Amount))
	case types.MethodAddBottlesFor:
		var args types.AddBottlesForArgs
		if err := types.DecodeArgs(call.Args, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
		user, err := crypto.ParseIdentity(args.User)
		if err != nil {
			return nil, fmt.Errorf("%w: user: %v", ErrInvalidArgs, err)
		}
		return c.engine.AddBottlesFor(ov, caller, user, uint64(args.Amount))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, call.Method)
	}
}

// publish emits events and hands transfers to the dispatcher. It never waits
// on the asset ledger; requests the dispatcher refuses are returned as dropped.
func (c *Contract) publish(out *recycle.Outcome) ([]*types.Event, []Dispatch, []Dispatch) {
	if out == nil {
		return nil, nil, nil
	}
	evts := make([]*types.Event, 0, len(out.Events))
	for _, evt := range out.Events {
		c.opts.Emitter.Emit(evt)
		evts = append(evts, evt.Event())
	}
	if c.dispatcher == nil || len(out.Transfers) == 0 {
		return evts, nil, nil
	}
	var dispatched, dropped []Dispatch
	for _, t := range out.Transfers {
		req := c.dispatcher.Prepare(t)
		if err := c.dispatcher.Submit(req); err != nil {
			dropped = append(dropped, req)
			continue
		}
		dispatched = append(dispatched, req)
	}
	return evts, dispatched, dropped
}

func (c *Contract) observe(method types.Method, out *recycle.Outcome) {
	for _, evt := range out.Events {
		switch e := evt.(type) {
		case events.RecycleBottles:
			observability.Recycle().RecordBottles(string(method), e.Increment)
		case events.RecycleRewardQueued:
			observability.Recycle().RecordReward(e.Amount)
		}
	}
}

func (c *Contract) nonce(r state.Reader, caller common.Address) (uint64, error) {
	var n uint64
	if _, err := r.Get(state.ScopeSystem, caller, nonceKey, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *Contract) bumpNonce(caller common.Address, current uint64) error {
	ov := c.state.Begin()
	if err := ov.Put(state.ScopeSystem, caller, nonceKey, current+1); err != nil {
		ov.Discard()
		return err
	}
	return ov.Commit()
}

// Query runs a read-only method against committed state. It takes no nonce
// and needs no signature.
func (c *Contract) Query(method types.Method, args json.RawMessage) (uint64, error) {
	switch method {
	case types.MethodGetBottleCount:
		return c.BottleCount()
	case types.MethodGetUserCount:
		var in struct {
			Account string `json:"account"`
		}
		if err := types.DecodeArgs(args, &in); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
		account, err := crypto.ParseIdentity(in.Account)
		if err != nil {
			return 0, fmt.Errorf("%w: account: %v", ErrInvalidArgs, err)
		}
		return c.UserCount(account)
	default:
		return 0, fmt.Errorf("%w: %q is not a read-only method", ErrUnknownMethod, method)
	}
}

// Nonce returns the next nonce expected from account.
func (c *Contract) Nonce(account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonce(c.state, account)
}

// BottleCount returns the global bottle count.
func (c *Contract) BottleCount() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.BottleCount(c.state)
}

// UserCount returns the bottles recorded for account.
func (c *Contract) UserCount(account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.UserCount(c.state, account)
}

// Config returns the current configuration record.
func (c *Contract) Config() (*recycle.Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Config(c.state)
}

// IsStation reports whether account holds the station role.
func (c *Contract) IsStation(account common.Address) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.IsStation(c.state, account)
}

// Outcome classifies err into a stable label for metrics and RPC mapping.
func Outcome(err error) string {
	var nonceErr *NonceError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, recycle.ErrAuthorization):
		return "unauthorized"
	case errors.Is(err, recycle.ErrValidation):
		return "invalid"
	case errors.Is(err, recycle.ErrOverflow):
		return "overflow"
	case errors.Is(err, recycle.ErrPrecondition):
		return "precondition"
	case errors.Is(err, modcommon.ErrModulePaused):
		return "paused"
	case errors.Is(err, ErrInvalidSignature):
		return "bad_signature"
	case errors.Is(err, ErrWrongNetwork):
		return "wrong_network"
	case errors.As(err, &nonceErr):
		return "bad_nonce"
	default:
		return "error"
	}
}
