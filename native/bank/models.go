package bank

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transfer kinds and statuses persisted in TransferRecord.
const (
	KindTransfer = "transfer"
	KindOptIn    = "opt_in"
	KindCredit   = "credit"

	StatusApplied  = "applied"
	StatusRejected = "rejected"
)

// Holding is one account's position in one asset. Amounts and asset ids are
// stored as decimal text because SQL integer columns cannot carry the full
// unsigned 64-bit range.
type Holding struct {
	ID        uint   `gorm:"primaryKey"`
	AssetID   string `gorm:"size:20;uniqueIndex:idx_holding_asset_account"`
	Account   string `gorm:"size:42;uniqueIndex:idx_holding_asset_account"`
	Amount    string `gorm:"size:20;not null"`
	OptedIn   bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TransferRecord is the audit trail of every instruction the ledger received,
// including the ones it refused.
type TransferRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	AssetID   string    `gorm:"size:20;index"`
	Sender    string    `gorm:"size:42;index"`
	Recipient string    `gorm:"size:42;index"`
	Amount    string    `gorm:"size:20"`
	Kind      string    `gorm:"size:16"`
	Status    string    `gorm:"size:16;index"`
	Reason    string    `gorm:"size:256"`
	CreatedAt time.Time
}

// AutoMigrate creates or updates the ledger tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Holding{}, &TransferRecord{})
}
