package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// ModuleRecycle names the recycle contract in pause configuration.
const ModuleRecycle = "recycle"

type PauseView interface {
	IsPaused(module string) bool
}

// StaticPauses is a PauseView backed by a fixed set of module names, as loaded
// from node configuration.
type StaticPauses map[string]bool

func (s StaticPauses) IsPaused(module string) bool {
	return s[module]
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
