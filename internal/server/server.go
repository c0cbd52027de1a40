package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	engine "github.com/gqlgate/gqlgate/internal/engine"
	eventbus "github.com/gqlgate/gqlgate/internal/eventbus"
	events "github.com/gqlgate/gqlgate/internal/events"
	httpbridge "github.com/gqlgate/gqlgate/internal/httpbridge"
	language "github.com/gqlgate/gqlgate/internal/language"
	reqid "github.com/gqlgate/gqlgate/internal/reqid"
	socket "github.com/gqlgate/gqlgate/internal/socket"
)

// Handler serves one-shot GraphQL exchanges over the socket contracts.
// It adapts the inbound exchange, resolves the active engine runtime per
// request, runs the operation, and writes the computed response back.
type Handler struct {
	provider *engine.Provider
	opt      Options
}

type Options struct {
	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64
}

type Option func(*Options)

func WithPretty() Option              { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option { return func(o *Options) { o.MaxBodyBytes = n } }

// New creates a handler backed by the given runtime provider.
func New(provider *engine.Provider, opts ...Option) *Handler {
	op := Options{}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{provider: provider, opt: op}
}

// Serve runs one exchange end to end: adapt the socket request, compute
// the response, drain it onto the sink.
func (h *Handler) Serve(ctx context.Context, sr socket.Request, sink socket.ResponseSink) {
	req := httpbridge.AdaptRequest(sr)
	res := h.Exchange(ctx, req)
	httpbridge.WriteResponse(sink, res)
}

// ServeHTTP rides the net/http-backed socket implementations.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Serve(r.Context(), socket.NewHTTPRequest(r), socket.NewHTTPSink(w))
}

// Exchange is the engine entry point for one-shot exchanges: an adapted
// request in, a computed response out.
func (h *Handler) Exchange(ctx context.Context, req *httpbridge.Request) *httpbridge.Response {
	ctx, _ = reqid.NewContext(ctx)
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Method: req.Method, Path: req.URL.Path})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{
			Method:   req.Method,
			Path:     req.URL.Path,
			Status:   status,
			Duration: time.Since(start),
		})
	}()

	if req.Method != http.MethodPost && req.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		return h.jsonResponse(status, errorResult(&language.Error{Message: "method not allowed"}))
	}

	greq, batch, berr := parseRequest(req, h.opt.MaxBodyBytes)
	if berr != nil {
		status = http.StatusBadRequest
		if berr.Message == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		return h.jsonResponse(status, errorResult(berr))
	}

	if batch != nil {
		out := make([]any, len(batch))
		for i := range batch {
			out[i] = h.executeOne(ctx, batch[i])
		}
		return h.jsonResponse(status, out)
	}
	return h.jsonResponse(status, h.executeOne(ctx, greq))
}

func (h *Handler) executeOne(ctx context.Context, greq GraphQLRequest) any {
	// The runtime is re-resolved for every operation so instrumentation
	// layered on after startup is honored.
	rt, err := h.provider.Resolve(ctx)
	if err != nil {
		return errorResult(&language.Error{Message: err.Error()})
	}

	doc, err := rt.Parse(greq.Query)
	if err != nil {
		return &engine.Result{Errors: language.AsErrorList(err)}
	}
	if errs := rt.Validate(rt.Schema, doc); len(errs) > 0 {
		return &engine.Result{Errors: errs}
	}

	opDef := doc.Operations.ForName(greq.OperationName)
	if opDef == nil {
		return errorResult(&language.Error{Message: "operation not found"})
	}
	if opDef.Operation == language.Subscription {
		return errorResult(&language.Error{Message: "subscriptions must use the persistent connection endpoint"})
	}

	ctxVal, err := rt.BuildContext(ctx)
	if err != nil {
		return errorResult(&language.Error{Message: err.Error()})
	}
	args := engine.ExecutionArgs{
		Schema:        rt.Schema,
		Document:      doc,
		OperationName: greq.OperationName,
		Variables:     greq.Variables,
		ContextValue:  ctxVal,
		Execute:       rt.Execute,
		Subscribe:     rt.Subscribe,
	}

	opStart := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{
		Query:         greq.Query,
		OperationName: greq.OperationName,
		OperationType: string(opDef.Operation),
	})
	result := args.Execute(ctx, args)
	errs := make([]error, len(result.Errors))
	for i := range result.Errors {
		errs[i] = result.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Query:         greq.Query,
		OperationName: greq.OperationName,
		OperationType: string(opDef.Operation),
		Errors:        errs,
		Duration:      time.Since(opStart),
	})
	return result
}

// ------------------ Request parsing ------------------

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

func parseRequest(req *httpbridge.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, *language.Error) {
	if req.Method == http.MethodGet {
		q := req.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, &language.Error{Message: "missing 'query'"}
		}
		vars := map[string]any{}
		if v := req.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, &language.Error{Message: "invalid 'variables' JSON"}
			}
		}
		op := req.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, nil
	}

	// POST
	ct := req.Header["content-type"]
	if ct != "" && ct != "application/json" && !startsWith(ct, "application/json;") {
		return GraphQLRequest{}, nil, &language.Error{Message: "unsupported Content-Type"}
	}
	if req.Body == nil {
		return GraphQLRequest{}, nil, &language.Error{Message: "missing request body"}
	}
	defer req.Body.Close()
	reader := io.Reader(req.Body)
	if maxBody > 0 {
		reader = io.LimitReader(req.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return GraphQLRequest{}, nil, &language.Error{Message: "failed to read body"}
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return GraphQLRequest{}, nil, &language.Error{Message: errBodyTooLargeMessage}
	}

	// Try array (batch)
	if len(body) > 0 && body[0] == '[' {
		var arr []GraphQLRequest
		if err := json.Unmarshal(body, &arr); err != nil {
			return GraphQLRequest{}, nil, &language.Error{Message: "invalid JSON"}
		}
		if len(arr) == 0 {
			return GraphQLRequest{}, nil, &language.Error{Message: "empty batch"}
		}
		return GraphQLRequest{}, arr, nil
	}
	var greq GraphQLRequest
	if err := json.Unmarshal(body, &greq); err != nil {
		return GraphQLRequest{}, nil, &language.Error{Message: "invalid JSON"}
	}
	if greq.Query == "" {
		return GraphQLRequest{}, nil, &language.Error{Message: "missing 'query'"}
	}
	if greq.Variables == nil {
		greq.Variables = map[string]any{}
	}
	return greq, nil, nil
}

// ------------------ Response formatting ------------------

func errorResult(errs ...*language.Error) *engine.Result {
	return &engine.Result{Errors: language.ErrorList(errs)}
}

func (h *Handler) jsonResponse(status int, v any) *httpbridge.Response {
	res := httpbridge.NewResponse(status)
	res.AddHeader("Content-Type", "application/json; charset=utf-8")
	var body []byte
	var err error
	if h.opt.Pretty {
		body, err = json.MarshalIndent(v, "", "  ")
	} else {
		body, err = json.Marshal(v)
	}
	if err != nil {
		res.Status = http.StatusInternalServerError
		res.StatusText = http.StatusText(res.Status)
		body = []byte(`{"errors":[{"message":"failed to encode response"}]}`)
	}
	res.Body = body
	return res
}

func startsWith(s, prefix string) bool { return len(s) >= len(prefix) && s[:len(prefix)] == prefix }

const errBodyTooLargeMessage = "body too large"
