// Package zcnbridge delivers the results of asynchronous wallet operations
// completed by the native wallet core to Go callbacks.
//
// Every operation registers its callback and receives a handle. The handle
// travels to the native core and comes back with the result; the dispatch
// gateway then takes the registration and invokes the callback exactly once.
// A registration ends either delivered or cancelled, never both.
//
// Client is the entry point. Open loads libzcncore and returns a client bound
// to it; NewClient accepts any Backend, such as an in-process simulation.
package zcnbridge

import (
	"github.com/obinnaokechukwu/zcnbridge/callback"
	"github.com/obinnaokechukwu/zcnbridge/internal/handles"
)

// Re-export common types for convenience
type (
	// Handle identifies one pending operation.
	Handle = handles.Handle

	// Kind is the completion kind of an operation.
	Kind = callback.Kind

	// Status is the outcome code reported by the native core.
	Status = callback.Status

	// BurnTicket is one not yet processed burn ticket.
	BurnTicket = callback.BurnTicket

	// BurnTickets is a list of burn tickets.
	BurnTickets = callback.BurnTickets
)
