package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"recycless/core/types"
)

type recordingLedger struct {
	mu      sync.Mutex
	applied []types.AssetTransfer
	froms   []common.Address
	fail    error
}

func (l *recordingLedger) Apply(_ context.Context, _ uuid.UUID, from common.Address, t types.AssetTransfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.applied = append(l.applied, t)
	l.froms = append(l.froms, from)
	return l.fail
}

func TestDispatcherResolvesSelfRecipient(t *testing.T) {
	ledger := &recordingLedger{}
	d := NewDispatcher(ledger, contractAccount, 4, nil)
	require.Equal(t, contractAccount, d.Account())

	req := d.Prepare(types.AssetTransfer{AssetID: 3, SelfRecipient: true})
	require.NotEqual(t, uuid.Nil, req.ID)
	require.Equal(t, contractAccount, req.Transfer.Recipient)
	require.NoError(t, d.Submit(req))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	require.Len(t, ledger.applied, 1)
	require.Equal(t, contractAccount, ledger.froms[0])
	require.True(t, ledger.applied[0].IsOptIn())
}

func TestDispatcherSwallowsLedgerFailures(t *testing.T) {
	ledger := &recordingLedger{fail: errors.New("insufficient balance")}
	d := NewDispatcher(ledger, contractAccount, 4, nil)
	user := common.HexToAddress("0x0000000000000000000000000000000000000001")

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Submit(d.Prepare(types.AssetTransfer{AssetID: 1, Amount: 2, Recipient: user})))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	require.Len(t, ledger.applied, 3)

	err := d.Submit(d.Prepare(types.AssetTransfer{AssetID: 1, Amount: 1, Recipient: user}))
	require.ErrorIs(t, err, ErrDispatcherClosed)
	require.NoError(t, d.Close(ctx), "close must be idempotent")
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	ledger := &stalledLedger{release: make(chan struct{})}
	d := NewDispatcher(ledger, contractAccount, 1, nil)
	user := common.HexToAddress("0x0000000000000000000000000000000000000002")

	var full int
	for i := 0; i < 3; i++ {
		err := d.Submit(d.Prepare(types.AssetTransfer{AssetID: 1, Amount: 1, Recipient: user}))
		if errors.Is(err, ErrQueueFull) {
			full++
			continue
		}
		require.NoError(t, err)
	}
	require.GreaterOrEqual(t, full, 1)

	close(ledger.release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
}
