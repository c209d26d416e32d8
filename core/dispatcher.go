package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"recycless/core/types"
	"recycless/observability"
)

// DefaultDispatchQueue bounds the number of transfer requests waiting for the
// asset ledger.
const DefaultDispatchQueue = 1024

var (
	ErrDispatcherClosed = errors.New("core: dispatcher closed")
	ErrQueueFull        = errors.New("core: dispatch queue full")
)

// AssetLedger settles transfer instructions issued by the contract account.
type AssetLedger interface {
	Apply(ctx context.Context, id uuid.UUID, from common.Address, transfer types.AssetTransfer) error
}

// Dispatch is a transfer request tagged with the identifier under which the
// asset ledger records it.
type Dispatch struct {
	ID       uuid.UUID           `json:"id"`
	Transfer types.AssetTransfer `json:"transfer"`
}

// Dispatcher forwards transfer requests to the asset ledger from a single
// background worker. Requests are fire-and-forget: a rejected transfer is
// logged and counted but never reported back to the contract.
type Dispatcher struct {
	ledger  AssetLedger
	account common.Address
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Dispatch
	done   chan struct{}
}

// NewDispatcher starts a dispatcher sending on behalf of account. A nil ledger
// drops every request.
func NewDispatcher(ledger AssetLedger, account common.Address, queueSize int, logger *slog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultDispatchQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		ledger:  ledger,
		account: account,
		logger:  logger,
		queue:   make(chan Dispatch, queueSize),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Account returns the contract account transfers are sent from.
func (d *Dispatcher) Account() common.Address {
	return d.account
}

// Prepare assigns an identifier and resolves self-addressed transfers to the
// contract account.
func (d *Dispatcher) Prepare(transfer types.AssetTransfer) Dispatch {
	if transfer.SelfRecipient {
		transfer.Recipient = d.account
	}
	return Dispatch{ID: uuid.New(), Transfer: transfer}
}

// Submit enqueues req without waiting. A full queue drops the request and
// returns ErrQueueFull.
func (d *Dispatcher) Submit(req Dispatch) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		observability.Recycle().RecordEffect("dropped")
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- req:
		return nil
	default:
		observability.Recycle().RecordEffect("dropped")
		d.logger.Warn("dispatch queue full; transfer request dropped",
			slog.String("id", req.ID.String()),
			slog.Uint64("asset_id", req.Transfer.AssetID),
			slog.Uint64("amount", req.Transfer.Amount),
			slog.String("recipient", req.Transfer.Recipient.Hex()))
		return ErrQueueFull
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for req := range d.queue {
		d.apply(req)
	}
}

func (d *Dispatcher) apply(req Dispatch) {
	attrs := []any{
		slog.String("id", req.ID.String()),
		slog.Uint64("asset_id", req.Transfer.AssetID),
		slog.Uint64("amount", req.Transfer.Amount),
		slog.String("recipient", req.Transfer.Recipient.Hex()),
	}
	if d.ledger == nil {
		observability.Recycle().RecordEffect("dropped")
		d.logger.Warn("no asset ledger configured; transfer dropped", attrs...)
		return
	}
	if err := d.ledger.Apply(context.Background(), req.ID, d.account, req.Transfer); err != nil {
		observability.Recycle().RecordEffect("rejected")
		d.logger.Warn("asset ledger rejected transfer", append(attrs, slog.Any("error", err))...)
		return
	}
	observability.Recycle().RecordEffect("applied")
	d.logger.Debug("transfer applied", attrs...)
}

// Close stops accepting requests and waits for queued ones to drain or ctx to
// expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
