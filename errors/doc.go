// Package errors classifies datahub failures and defines the hub's sentinel
// errors. Import it in place of the standard library package and alias the
// latter as stderrors where both are needed.
//
// # Classes
//
// Errors fall into three classes: Transient (temporary, retryable), Invalid
// (bad input, non-retryable) and Fatal (unrecoverable, stop processing).
// On top of that the package defines the hub's sentinel errors, which callers
// compare with errors.Is:
//
//   - ErrAuthFailure, ErrAuthCooldown: credential rejected, or the circuit
//     breaker is refusing new attempts after a recent rejection
//   - ErrTimeout, ErrNoResponders: the only request failures that are retried
//   - ErrPermissionViolation: the bus refused a subject; logged and skipped
//   - ErrDiscoveryFailed, ErrDefinitionNotFound, ErrVariableNotFound
//   - ErrUnsupportedValueType: a value could not be coerced to its declared type
//   - ErrFingerprintMismatch: a value list references an unknown definition set
//
// # Translating bus errors
//
// FromNATS maps nats.go errors onto the sentinels while keeping the original
// error in the chain:
//
//	resp, err := nc.RequestWithContext(ctx, subj, payload)
//	if err != nil {
//	    return nil, errors.FromNATS(err)
//	}
//
// IsRetryable is the predicate used by the request scheduler.
//
// # Wrapping
//
// All wrapping follows "component.method: action failed: %w":
//
//	return errors.WrapTransient(err, "Scheduler", "Request", "bus request")
//
// The classified variants carry the class so IsTransient, IsInvalid and
// IsFatal can answer without string matching.
package errors
