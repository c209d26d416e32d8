package types

import "github.com/ethereum/go-ethereum/common"

// AssetTransfer is a one-way instruction for the asset ledger. The contract
// never observes its outcome. A zero amount sent to the contract's own account
// is an opt-in.
type AssetTransfer struct {
	AssetID   uint64         `json:"assetId"`
	Amount    uint64         `json:"amount"`
	Recipient common.Address `json:"recipient"`
	// SelfRecipient marks transfers addressed to the contract account, which
	// the contract itself does not know; the dispatcher fills Recipient in.
	SelfRecipient bool `json:"selfRecipient,omitempty"`
}

// IsOptIn reports whether the transfer is a zero-amount self transfer.
func (t AssetTransfer) IsOptIn() bool {
	return t.SelfRecipient && t.Amount == 0
}
