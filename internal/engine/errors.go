package engine

import "fmt"

// ValidationError reports a malformed transaction record. One malformed
// record fails the entire batch: a partially scored batch would make the
// explanation flags meaningless.
type ValidationError struct {
	Index  int    // position of the offending record in the batch
	Field  string // "sender", "receiver", "amount" or "time"
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid transaction at index %d: field %q %s", e.Index, e.Field, e.Reason)
}

// ConfigurationError reports an invalid tuning value. It is raised before
// any graph construction or scoring starts.
type ConfigurationError struct {
	Param  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Param, e.Reason)
}
