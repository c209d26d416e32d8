package recycle

import (
	"github.com/ethereum/go-ethereum/common"

	"recycless/core/state"
)

// Totals are the counter values after a successful record.
type Totals struct {
	Total     uint64
	UserTotal uint64
}

// Record adds increment to the global total and to the receiver's count. Both
// sums are computed before either is written, so an overflow in either leaves
// both counters untouched.
func Record(st state.Store, receiver common.Address, increment uint64) (Totals, error) {
	if increment == 0 {
		return Totals{}, ErrInvalidAmount
	}
	total, err := GlobalUint64(keyBottleCount).GetOr(st, 0)
	if err != nil {
		return Totals{}, err
	}
	user, err := userCount.GetOr(st, receiver, 0)
	if err != nil {
		return Totals{}, err
	}
	newTotal, err := checkedAdd(total, increment)
	if err != nil {
		return Totals{}, err
	}
	newUser, err := checkedAdd(user, increment)
	if err != nil {
		return Totals{}, err
	}
	if err := GlobalUint64(keyBottleCount).Set(st, newTotal); err != nil {
		return Totals{}, err
	}
	if err := userCount.Set(st, receiver, newUser); err != nil {
		return Totals{}, err
	}
	return Totals{Total: newTotal, UserTotal: newUser}, nil
}

// BottleCount returns the global total, zero before the first record.
func BottleCount(r state.Reader) (uint64, error) {
	return GlobalUint64(keyBottleCount).GetOr(r, 0)
}

// UserCount returns the count recorded for account, zero if none.
func UserCount(r state.Reader, account common.Address) (uint64, error) {
	return userCount.GetOr(r, account, 0)
}
