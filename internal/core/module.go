package core

// ModuleID uniquely identifies a module, namespaced by dots
// (e.g. "gateway.http", "store.sqlite", "bot.telegram").
type ModuleID string

// Namespace returns everything up to the last dot, or "" if undotted.
func (id ModuleID) Namespace() string {
	s := string(id)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[:i]
		}
	}
	return ""
}

// Name returns the part after the last dot.
func (id ModuleID) Name() string {
	s := string(id)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[i+1:]
		}
	}
	return s
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique module identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is the minimal interface every module implements.
// Lifecycle behavior is added through the optional interfaces in
// lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}
