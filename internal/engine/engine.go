// Package engine defines the integration surface between the transport
// bridge and the query engine: a tuple of currently-active parse,
// validate, execute and subscribe implementations, plus the provider that
// re-resolves that tuple once per incoming operation.
package engine

import (
	"context"

	language "github.com/gqlgate/gqlgate/internal/language"
)

// ParseFunc parses query text into an executable document.
type ParseFunc func(query string) (*language.QueryDocument, error)

// ValidateFunc validates a parsed document against the schema and returns
// every violation found.
type ValidateFunc func(schema *language.Schema, doc *language.QueryDocument) language.ErrorList

// ExecuteFunc runs a query or mutation to a single result.
type ExecuteFunc func(ctx context.Context, args ExecutionArgs) *Result

// SubscribeFunc starts a subscription and returns its result sequence.
// The channel must be closed when the sequence ends or ctx is cancelled.
type SubscribeFunc func(ctx context.Context, args ExecutionArgs) (<-chan *Result, error)

// ContextFunc produces the per-operation context value handed to resolver
// logic. The value is opaque to the bridge.
type ContextFunc func(ctx context.Context) (any, error)

// Runtime is one snapshot of the engine's active implementations. The
// execute and subscribe functions may be wrapped with instrumentation at
// any time, so a snapshot is only valid for the operation it was resolved
// for.
//
// General contract
//   - Execute and Subscribe must honor ctx cancellation.
//   - Implementations should be stateless or otherwise concurrency-safe;
//     the bridge calls them concurrently for different operations.
//   - Execution errors belong in Result.Errors; they are surfaced in the
//     operation's payload and are never fatal to the connection.
type Runtime struct {
	Schema       *language.Schema
	Parse        ParseFunc
	Validate     ValidateFunc
	Execute      ExecuteFunc
	Subscribe    SubscribeFunc
	BuildContext ContextFunc
}

// ExecutionArgs carries everything one operation needs, including
// references to the just-resolved Execute/Subscribe implementations. The
// references are taken once per operation and never reused across
// operations: a later operation on the same connection must observe any
// instrumentation layered on after this one started.
type ExecutionArgs struct {
	Schema        *language.Schema
	Document      *language.QueryDocument
	OperationName string
	Variables     map[string]any
	ContextValue  any

	Execute   ExecuteFunc
	Subscribe SubscribeFunc
}

// Result is one produced value of an operation: the single response of a
// query or mutation, or one element of a subscription's sequence.
type Result struct {
	Data   any                `json:"data"`
	Errors language.ErrorList `json:"errors,omitempty"`
}

// NewRuntime assembles a Runtime around execute/subscribe, filling parse
// and validate with the standard implementations and BuildContext with a
// nil context value.
func NewRuntime(schema *language.Schema, execute ExecuteFunc, subscribe SubscribeFunc) *Runtime {
	return &Runtime{
		Schema:       schema,
		Parse:        language.ParseQuery,
		Validate:     language.Validate,
		Execute:      execute,
		Subscribe:    subscribe,
		BuildContext: func(ctx context.Context) (any, error) { return nil, nil },
	}
}
