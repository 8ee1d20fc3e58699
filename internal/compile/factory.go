package compile

import (
	"fmt"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Compiler{}
)

// RegisterCompiler adds a constructor for the named dialect target to the
// process-wide registry. Called from each dialect's init(), mirroring the
// teacher's dialect.RegisterDialect.
func RegisterCompiler(target string, ctor func() Compiler) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[target] = ctor
}

// Factory returns a fresh Compiler instance for the given target name.
func Factory(target string) (Compiler, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ctor, ok := registry[target]
	if !ok {
		return nil, fmt.Errorf("compile: dialect %q is not registered", target)
	}
	return ctor(), nil
}

// resetRegistry replaces the registry with the given map. Intended for
// testing only.
func resetRegistry(r map[string]func() Compiler) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = r
}

// snapshotRegistry returns a shallow copy of the current registry. Intended
// for testing only.
func snapshotRegistry() map[string]func() Compiler {
	registryMu.RLock()
	defer registryMu.RUnlock()
	snap := make(map[string]func() Compiler, len(registry))
	for k, v := range registry {
		snap[k] = v
	}
	return snap
}
