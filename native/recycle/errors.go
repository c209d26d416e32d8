package recycle

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine wraps exactly one of these so
// the call boundary can classify it with errors.Is.
var (
	ErrAuthorization = errors.New("recycle: unauthorized")
	ErrValidation    = errors.New("recycle: invalid argument")
	ErrOverflow      = errors.New("recycle: arithmetic overflow")
	ErrPrecondition  = errors.New("recycle: precondition failed")
)

var (
	ErrNotAdmin         = fmt.Errorf("%w: only admin", ErrAuthorization)
	ErrNotStation       = fmt.Errorf("%w: station only", ErrAuthorization)
	ErrInvalidAmount    = fmt.Errorf("%w: amount must be > 0", ErrValidation)
	ErrInvalidRate      = fmt.Errorf("%w: rate must be > 0", ErrValidation)
	ErrRewardAssetUnset = fmt.Errorf("%w: reward asset not set", ErrPrecondition)
	ErrAlreadyCreated   = fmt.Errorf("%w: contract already created", ErrPrecondition)
	ErrNotCreated       = fmt.Errorf("%w: contract not created", ErrPrecondition)
)
