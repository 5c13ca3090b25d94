package domain

import (
	"errors"
	"fmt"
)

// ErrUnkeyed marks an entity that carries no foreign key at all.
var ErrUnkeyed = errors.New("entity has no cross-reference id")

// ErrResolution is wrapped by every ResolutionError.
var ErrResolution = errors.New("taxonomy resolution failed")

// ResolutionError reports a taxonomy chain that could not be climbed.
type ResolutionError struct {
	ParentID string // immediate parent the climb started from
	NodeID   string // node that failed
	Depth    int
	Reason   string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: node %s at depth %d: %s", e.ParentID, e.NodeID, e.Depth, e.Reason)
}

func (e *ResolutionError) Unwrap() error { return ErrResolution }

// RemoteCallError wraps a failure returned by a store client.
type RemoteCallError struct {
	System System
	Op     string
	ID     string
	Status int // HTTP status, 0 when the call never got a response
	Err    error
}

func (e *RemoteCallError) Error() string {
	msg := fmt.Sprintf("%s %s", e.System, e.Op)
	if e.ID != "" {
		msg += " " + e.ID
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteCallError) Unwrap() error { return e.Err }
