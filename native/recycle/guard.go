package recycle

import (
	"github.com/ethereum/go-ethereum/common"

	"recycless/core/state"
)

// IsAdmin reports whether caller is the contract admin.
func IsAdmin(cfg *Config, caller common.Address) bool {
	return cfg != nil && cfg.Admin == caller
}

// IsStation reports whether caller holds the station role. Identities that were
// never assigned read as non-stations.
func IsStation(r state.Reader, caller common.Address) (bool, error) {
	flag, err := isStation.GetOr(r, caller, 0)
	if err != nil {
		return false, err
	}
	return flag == 1, nil
}

func requireAdmin(cfg *Config, caller common.Address) error {
	if !IsAdmin(cfg, caller) {
		return ErrNotAdmin
	}
	return nil
}

func requireStation(r state.Reader, caller common.Address) error {
	ok, err := IsStation(r, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotStation
	}
	return nil
}
