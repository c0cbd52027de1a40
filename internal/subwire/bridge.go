// Package subwire implements the connection-level protocol for starting,
// streaming, and stopping named operations over one persistent
// bidirectional connection. Each operation is an independent state
// machine keyed by id; connection teardown cancels all live operations
// without individually notifying each.
package subwire

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	engine "github.com/gqlgate/gqlgate/internal/engine"
	eventbus "github.com/gqlgate/gqlgate/internal/eventbus"
	events "github.com/gqlgate/gqlgate/internal/events"
	language "github.com/gqlgate/gqlgate/internal/language"
	reqid "github.com/gqlgate/gqlgate/internal/reqid"

	"github.com/google/uuid"
)

// Conn is the transport consumed by the bridge: framed reads plus a raw
// send. Send must be safe to call while ReadMessage blocks; the bridge
// itself serializes concurrent senders.
type Conn interface {
	ReadMessage() ([]byte, error)
	Send(v any) error
	Close() error
}

// Bridge multiplexes many named operations over one connection.
type Bridge struct {
	provider *engine.Provider
	connID   string

	conn   Conn
	sendMu sync.Mutex

	mu    sync.Mutex
	ops   map[string]*operation
	acked bool
}

// operation entries are removed from the bridge's map when their
// terminal message is sent or the client stops them; map membership is
// what makes next and terminate no-ops afterwards.
type operation struct {
	cancel context.CancelFunc
}

// New creates a bridge for one connection.
func New(provider *engine.Provider) *Bridge {
	return &Bridge{
		provider: provider,
		connID:   uuid.NewString(),
		ops:      map[string]*operation{},
	}
}

// ConnID returns the bridge's connection correlation id.
func (b *Bridge) ConnID() string { return b.connID }

// ServeConn runs the read loop until the connection closes or a protocol
// violation forces a shutdown. The returned error is the read error or
// violation; transport closure surfaces as the underlying read error.
func (b *Bridge) ServeConn(ctx context.Context, conn Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctx = reqid.WithID(ctx, b.connID)
	b.conn = conn

	start := time.Now()
	eventbus.Publish(ctx, events.ConnOpen{ConnID: b.connID})
	defer func() {
		b.mu.Lock()
		inflight := len(b.ops)
		for _, op := range b.ops {
			op.cancel()
		}
		b.ops = map[string]*operation{}
		b.mu.Unlock()
		eventbus.Publish(ctx, events.ConnClose{
			ConnID:     b.connID,
			Operations: inflight,
			Duration:   time.Since(start),
		})
	}()

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			b.send("", MsgError, language.ErrorList{&language.Error{Message: "invalid message"}})
			continue
		}
		switch msg.Type {
		case MsgConnectionInit:
			b.mu.Lock()
			dup := b.acked
			b.acked = true
			b.mu.Unlock()
			if dup {
				return fmt.Errorf("subwire: duplicate connection_init")
			}
			b.send("", MsgConnectionAck, nil)
		case MsgSubscribe, MsgStart:
			if err := b.startOperation(ctx, msg); err != nil {
				return err
			}
		case MsgComplete, MsgStop:
			b.stopOperation(msg.ID)
		case MsgPing:
			b.send("", MsgPong, nil)
		default:
			b.send(msg.ID, MsgError, language.ErrorList{
				&language.Error{Message: fmt.Sprintf("unknown message type %q", msg.Type)},
			})
		}
	}
}

// startOperation drives one start-operation frame through parse, context
// resolution, and validation, then launches the operation. A non-nil
// return closes the whole connection.
func (b *Bridge) startOperation(ctx context.Context, msg Message) error {
	if msg.ID == "" {
		b.send("", MsgError, language.ErrorList{&language.Error{Message: "missing operation id"}})
		return nil
	}
	b.mu.Lock()
	acked := b.acked
	_, exists := b.ops[msg.ID]
	b.mu.Unlock()
	if !acked {
		b.send(msg.ID, MsgError, language.ErrorList{&language.Error{Message: "connection not initialised"}})
		return nil
	}
	if exists {
		b.send(msg.ID, MsgError, language.ErrorList{
			&language.Error{Message: fmt.Sprintf("operation %q already exists", msg.ID)},
		})
		return fmt.Errorf("subwire: duplicate operation id %q", msg.ID)
	}

	var req OperationRequest
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			b.send(msg.ID, MsgError, language.ErrorList{&language.Error{Message: "invalid operation payload"}})
			return nil
		}
	}

	// The runtime tuple is re-resolved for every operation: a new
	// operation on a long-lived connection must observe instrumentation
	// layered onto the engine after earlier operations started.
	rt, err := b.provider.Resolve(ctx)
	if err != nil {
		b.send(msg.ID, MsgError, language.AsErrorList(err))
		return nil
	}

	doc, err := rt.Parse(req.Query)
	if err != nil {
		b.send(msg.ID, MsgError, language.AsErrorList(err))
		return nil
	}

	ctxVal, err := rt.BuildContext(ctx)
	if err != nil {
		b.send(msg.ID, MsgError, language.AsErrorList(err))
		return nil
	}
	// Args carry references to the just-resolved implementations; they
	// are invoked later by whichever path (execute or subscribe) runs.
	args := engine.ExecutionArgs{
		Schema:        rt.Schema,
		Document:      doc,
		OperationName: req.OperationName,
		Variables:     req.Variables,
		ContextValue:  ctxVal,
		Execute:       rt.Execute,
		Subscribe:     rt.Subscribe,
	}

	if errs := rt.Validate(rt.Schema, doc); len(errs) > 0 {
		// The operation never starts executing.
		b.send(msg.ID, MsgError, errs)
		return nil
	}

	opDef := doc.Operations.ForName(req.OperationName)
	if opDef == nil {
		b.send(msg.ID, MsgError, language.ErrorList{&language.Error{Message: "operation not found"}})
		return nil
	}
	// A runtime may register only one of the two entry points; reject the
	// frame here so a missing implementation surfaces as an error for this
	// id instead of a crash inside the operation goroutine.
	if opDef.Operation == language.Subscription && args.Subscribe == nil {
		b.send(msg.ID, MsgError, language.ErrorList{&language.Error{Message: "subscription operations are not supported"}})
		return nil
	}
	if opDef.Operation != language.Subscription && args.Execute == nil {
		b.send(msg.ID, MsgError, language.ErrorList{&language.Error{Message: "query and mutation operations are not supported"}})
		return nil
	}

	opCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.ops[msg.ID] = &operation{cancel: cancel}
	b.mu.Unlock()

	eventbus.Publish(ctx, events.OperationStart{
		ConnID:        b.connID,
		OperationID:   msg.ID,
		OperationName: req.OperationName,
		OperationType: string(opDef.Operation),
	})
	go b.run(opCtx, msg.ID, opDef.Operation == language.Subscription, args)
	return nil
}

// run executes one operation to its terminal state.
func (b *Bridge) run(ctx context.Context, id string, isSubscription bool, args engine.ExecutionArgs) {
	start := time.Now()
	var termErrs []error

	if isSubscription {
		ch, err := args.Subscribe(ctx, args)
		if err != nil {
			errs := language.AsErrorList(err)
			b.terminate(id, MsgError, errs)
			for i := range errs {
				termErrs = append(termErrs, errs[i])
			}
		} else {
			for res := range ch {
				if !b.next(id, res) {
					break
				}
			}
			b.terminate(id, MsgComplete, nil)
		}
	} else {
		res := args.Execute(ctx, args)
		b.next(id, res)
		b.terminate(id, MsgComplete, nil)
		for i := range res.Errors {
			termErrs = append(termErrs, res.Errors[i])
		}
	}

	eventbus.Publish(ctx, events.OperationFinish{
		ConnID:      b.connID,
		OperationID: id,
		Errors:      termErrs,
		Duration:    time.Since(start),
	})
}

// stopOperation handles a client-issued complete: the operation is
// cancelled and nothing further is sent for its id.
func (b *Bridge) stopOperation(id string) {
	b.mu.Lock()
	op, ok := b.ops[id]
	if ok {
		delete(b.ops, id)
	}
	b.mu.Unlock()
	if ok {
		op.cancel()
	}
}

// next emits one result frame for a live operation. It reports whether
// the operation is still live.
func (b *Bridge) next(id string, res *engine.Result) bool {
	b.mu.Lock()
	_, live := b.ops[id]
	b.mu.Unlock()
	if !live {
		return false
	}
	b.send(id, MsgNext, res)
	return true
}

// terminate sends the terminal frame for id, at most once.
func (b *Bridge) terminate(id string, msgType string, payload any) {
	b.mu.Lock()
	op, ok := b.ops[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.ops, id)
	b.mu.Unlock()
	op.cancel()
	b.send(id, msgType, payload)
}

func (b *Bridge) send(id, msgType string, payload any) {
	msg := Message{ID: id, Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			raw, _ = json.Marshal(language.ErrorList{&language.Error{Message: "failed to encode payload"}})
			msg.Type = MsgError
		}
		msg.Payload = raw
	}
	b.sendMu.Lock()
	defer b.sendMu.Unlock()
	// A failed send means the transport is gone; the read loop observes
	// the same closure and tears everything down.
	_ = b.conn.Send(msg)
}
