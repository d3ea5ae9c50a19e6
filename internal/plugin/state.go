package plugin

// State represents the lifecycle state of a plugin.
//
// Construction always lands in StateDisabled; there is no direct jump
// from StateUninitialized to StateEnabled. Enabling an already enabled
// plugin (and disabling a disabled one) is a no-op.
type State int

// Plugin states.
const (
	// StateUninitialized - the plugin value exists but has not been
	// registered with the manager.
	StateUninitialized State = iota

	// StateDisabled - registered, no UI integration active.
	StateDisabled

	// StateEnabled - the plugin's Enable hook ran successfully.
	StateEnabled

	// StateError - the last Enable or Disable hook failed.
	StateError
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateDisabled:
		return "disabled"
	case StateEnabled:
		return "enabled"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
