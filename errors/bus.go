package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// natsMapping pairs nats.go errors with the sentinel they surface as
var natsMapping = []struct {
	sentinel error
	causes   []error
}{
	{ErrTimeout, []error{nats.ErrTimeout, context.DeadlineExceeded}},
	{ErrNoResponders, []error{nats.ErrNoResponders}},
	{ErrAuthFailure, []error{nats.ErrAuthorization, nats.ErrAuthExpired, nats.ErrAuthRevoked}},
	{ErrPermissionViolation, []error{nats.ErrPermissionViolation}},
	{ErrNoConnection, []error{nats.ErrConnectionClosed, nats.ErrConnectionDraining, nats.ErrInvalidConnection}},
}

// FromNATS maps a nats.go error onto the matching sentinel. err stays in
// the chain, so errors.Is against the nats error still holds. Errors with
// no mapping are returned as is.
func FromNATS(err error) error {
	if err == nil {
		return nil
	}
	for _, m := range natsMapping {
		if isAny(err, m.causes) {
			return fmt.Errorf("%w: %w", m.sentinel, err)
		}
	}

	// server -ERR lines arrive as plain text
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "authorization violation"), strings.Contains(msg, "authentication"):
		return fmt.Errorf("%w: %w", ErrAuthFailure, err)
	case strings.Contains(msg, "permissions violation"):
		return fmt.Errorf("%w: %w", ErrPermissionViolation, err)
	}
	return err
}

// IsRetryable reports whether a failed request should be attempted again.
// Only timeouts and missing responders qualify.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return isAny(err, []error{ErrTimeout, ErrNoResponders, nats.ErrTimeout, nats.ErrNoResponders})
}

// IsAuthFailure reports whether the bus or the identity provider rejected
// the credentials
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAuthFailure)
}
