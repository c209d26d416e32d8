package rpc

import (
	"errors"
	"net/http"

	"recycless/core"
	modcommon "recycless/native/common"
	"recycless/native/recycle"
)

// contractError maps a contract failure onto an HTTP status and JSON-RPC code.
func contractError(err error) (int, int) {
	var nonceErr *core.NonceError
	switch {
	case errors.Is(err, recycle.ErrAuthorization):
		return http.StatusForbidden, codeUnauthorized
	case errors.Is(err, recycle.ErrValidation),
		errors.Is(err, core.ErrInvalidSignature),
		errors.Is(err, core.ErrWrongNetwork),
		errors.Is(err, core.ErrReadOnlyCall):
		return http.StatusBadRequest, codeInvalidParams
	case errors.Is(err, recycle.ErrPrecondition):
		return http.StatusConflict, codePrecondition
	case errors.Is(err, recycle.ErrOverflow):
		return http.StatusUnprocessableEntity, codeOverflow
	case errors.Is(err, modcommon.ErrModulePaused):
		return http.StatusServiceUnavailable, codePaused
	case errors.As(err, &nonceErr):
		return http.StatusConflict, codeBadNonce
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func writeContractError(w http.ResponseWriter, id interface{}, err error) {
	status, code := contractError(err)
	message := err.Error()
	if code == codeInternal {
		message = "internal error"
	}
	var data interface{}
	var nonceErr *core.NonceError
	if errors.As(err, &nonceErr) {
		data = map[string]uint64{"expected": nonceErr.Expected, "got": nonceErr.Got}
	}
	writeError(w, status, id, code, message, data)
}
