package recycle

import "github.com/holiman/uint256"

func checkedAdd(a, b uint64) (uint64, error) {
	sum, _ := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if !sum.IsUint64() {
		return 0, ErrOverflow
	}
	return sum.Uint64(), nil
}

func checkedMul(a, b uint64) (uint64, error) {
	product, _ := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if !product.IsUint64() {
		return 0, ErrOverflow
	}
	return product.Uint64(), nil
}
