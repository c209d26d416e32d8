package bank

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"recycless/core/types"
)

var (
	ErrNotOptedIn          = errors.New("bank: account not opted in to asset")
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrBalanceOverflow     = errors.New("bank: balance overflow")
	ErrUnknownDriver       = errors.New("bank: unknown database driver")
)

// Open connects to the ledger database. Supported drivers are "sqlite" (pure
// Go, the default) and "postgres".
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		if strings.TrimSpace(dsn) == "" {
			dsn = "file::memory:?cache=shared"
		}
		return gorm.Open(sqlite.Open(dsn), cfg)
	case "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// Options tune ledger behaviour.
type Options struct {
	// AutoOptIn lets transfers create recipient holdings on the fly instead of
	// rejecting recipients that never opted in.
	AutoOptIn bool
}

// Ledger is a minimal fungible asset ledger that settles the transfer requests
// produced by the contract.
type Ledger struct {
	db   *gorm.DB
	opts Options
	now  func() time.Time
}

// NewLedger wraps an already migrated database handle.
func NewLedger(db *gorm.DB, opts Options) *Ledger {
	return &Ledger{db: db, opts: opts, now: time.Now}
}

func formatU64(v uint64) string { return strconv.FormatUint(v, 10) }

func parseU64(v string) (uint64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseUint(v, 10, 64)
}

func accountKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func loadHolding(tx *gorm.DB, assetID uint64, account common.Address) (*Holding, error) {
	var h Holding
	err := tx.Where("asset_id = ? AND account = ?", formatU64(assetID), accountKey(account)).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func upsertHolding(tx *gorm.DB, assetID uint64, account common.Address, mutate func(h *Holding) error) error {
	h, err := loadHolding(tx, assetID, account)
	if err != nil {
		return err
	}
	if h == nil {
		h = &Holding{AssetID: formatU64(assetID), Account: accountKey(account), Amount: "0"}
	}
	if err := mutate(h); err != nil {
		return err
	}
	return tx.Save(h).Error
}

func credit(h *Holding, amount uint64) error {
	current, err := parseU64(h.Amount)
	if err != nil {
		return err
	}
	if current > ^uint64(0)-amount {
		return ErrBalanceOverflow
	}
	h.Amount = formatU64(current + amount)
	return nil
}

// Credit mints amount of assetID into account, opting it in. Used to fund the
// contract account at boot.
func (l *Ledger) Credit(ctx context.Context, assetID uint64, account common.Address, amount uint64) error {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertHolding(tx, assetID, account, func(h *Holding) error {
			h.OptedIn = true
			return credit(h, amount)
		})
	})
	l.record(ctx, uuid.New(), KindCredit, assetID, common.Address{}, account, amount, err)
	return err
}

// OptIn marks account as able to hold assetID.
func (l *Ledger) OptIn(ctx context.Context, assetID uint64, account common.Address) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertHolding(tx, assetID, account, func(h *Holding) error {
			h.OptedIn = true
			return nil
		})
	})
}

// Balance returns the holding of account in assetID and whether it opted in.
func (l *Ledger) Balance(ctx context.Context, assetID uint64, account common.Address) (uint64, bool, error) {
	h, err := loadHolding(l.db.WithContext(ctx), assetID, account)
	if err != nil || h == nil {
		return 0, false, err
	}
	amount, err := parseU64(h.Amount)
	if err != nil {
		return 0, false, err
	}
	return amount, h.OptedIn, nil
}

// Apply settles a transfer instruction sent from the from account. Zero-amount
// self transfers are opt-ins. The outcome is recorded whether or not the
// transfer succeeds.
func (l *Ledger) Apply(ctx context.Context, id uuid.UUID, from common.Address, transfer types.AssetTransfer) error {
	if transfer.Amount == 0 && transfer.Recipient == from {
		err := l.OptIn(ctx, transfer.AssetID, from)
		l.record(ctx, id, KindOptIn, transfer.AssetID, from, from, 0, err)
		return err
	}
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sender, err := loadHolding(tx, transfer.AssetID, from)
		if err != nil {
			return err
		}
		if sender == nil || !sender.OptedIn {
			return fmt.Errorf("%w: sender %s", ErrNotOptedIn, from.Hex())
		}
		balance, err := parseU64(sender.Amount)
		if err != nil {
			return err
		}
		if balance < transfer.Amount {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, balance, transfer.Amount)
		}
		recipient, err := loadHolding(tx, transfer.AssetID, transfer.Recipient)
		if err != nil {
			return err
		}
		if (recipient == nil || !recipient.OptedIn) && !l.opts.AutoOptIn {
			return fmt.Errorf("%w: recipient %s", ErrNotOptedIn, transfer.Recipient.Hex())
		}
		sender.Amount = formatU64(balance - transfer.Amount)
		if err := tx.Save(sender).Error; err != nil {
			return err
		}
		return upsertHolding(tx, transfer.AssetID, transfer.Recipient, func(h *Holding) error {
			h.OptedIn = true
			return credit(h, transfer.Amount)
		})
	})
	l.record(ctx, id, KindTransfer, transfer.AssetID, from, transfer.Recipient, transfer.Amount, err)
	return err
}

func (l *Ledger) record(ctx context.Context, id uuid.UUID, kind string, assetID uint64, from, to common.Address, amount uint64, cause error) {
	rec := TransferRecord{
		ID:        id,
		AssetID:   formatU64(assetID),
		Sender:    accountKey(from),
		Recipient: accountKey(to),
		Amount:    formatU64(amount),
		Kind:      kind,
		Status:    StatusApplied,
		CreatedAt: l.now().UTC(),
	}
	if cause != nil {
		rec.Status = StatusRejected
		rec.Reason = cause.Error()
		if len(rec.Reason) > 256 {
			rec.Reason = rec.Reason[:256]
		}
	}
	// The audit row is best effort; a failure here must not change the
	// transfer outcome reported to the caller.
	_ = l.db.WithContext(ctx).Create(&rec).Error
}

// Transfer listing bounds.
const (
	DefaultTransferLimit = 100
	MaxTransferLimit     = 500
)

// Transfers lists audit records for account, newest first.
func (l *Ledger) Transfers(ctx context.Context, account common.Address, limit int) ([]TransferRecord, error) {
	if limit <= 0 || limit > MaxTransferLimit {
		limit = DefaultTransferLimit
	}
	key := accountKey(account)
	var out []TransferRecord
	err := l.db.WithContext(ctx).
		Where("sender = ? OR recipient = ?", key, key).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
