package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gqlgate/gqlgate/internal/engine"
	"github.com/gqlgate/gqlgate/internal/eventbus"
	"github.com/gqlgate/gqlgate/internal/language"
	"github.com/gqlgate/gqlgate/internal/otel"
	"github.com/gqlgate/gqlgate/internal/server"
	"github.com/gqlgate/gqlgate/internal/subwire"
)

const rootUsage = `gqlgate — GraphQL transport bridge

USAGE:
  gqlgate <command> [flags]

COMMANDS:
  serve            Run the demo gateway (HTTP + websocket subscriptions)
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -server.addr <addr>          HTTP listen address (default: :8080)
  -server.pretty               Pretty-print JSON responses
  -server.max-body-bytes <n>   Max request body size in bytes (default: 1048576)
  -otel.endpoint <addr>        OTLP collector endpoint
  -otel.service <name>         OpenTelemetry service name (default: gqlgate)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("gqlgate", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Print(serveUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

func cmdServe(args []string) error {
	addr := ":8080"
	pretty := false
	maxBody := int64(1 << 20)
	otelEndpoint := ""
	otelService := "gqlgate"

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.Int64Var(&maxBody, "server.max-body-bytes", maxBody, "Max request body size")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	rt, err := demoRuntime()
	if err != nil {
		return fmt.Errorf("demo runtime: %w", err)
	}
	provider := engine.NewProvider(rt)

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	var sopts []server.Option
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if maxBody > 0 {
		sopts = append(sopts, server.WithMaxBodyBytes(maxBody))
	}
	h := server.New(provider, sopts...)
	ws := subwire.NewWSHandler(provider, nil)

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)
	mux.Handle("/graphql/ws", ws)

	log.Printf("GraphQL gateway listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

const demoSDL = `
type Query {
  hello(name: String): String!
  serverTime: String!
}

type Subscription {
  ticks(intervalMs: Int): String!
}
`

// demoRuntime wires a tiny engine through the bridge so the binary runs
// end to end without external backends.
func demoRuntime() (*engine.Runtime, error) {
	schema, err := language.LoadSchema("demo", demoSDL)
	if err != nil {
		return nil, err
	}

	execute := func(ctx context.Context, args engine.ExecutionArgs) *engine.Result {
		op := args.Document.Operations.ForName(args.OperationName)
		if op == nil {
			return &engine.Result{Errors: language.ErrorList{&language.Error{Message: "operation not found"}}}
		}
		data := map[string]any{}
		for _, sel := range op.SelectionSet {
			field, ok := sel.(*language.Field)
			if !ok {
				continue
			}
			switch field.Name {
			case "hello":
				name := "world"
				if arg := field.Arguments.ForName("name"); arg != nil {
					if v, err := arg.Value.Value(args.Variables); err == nil {
						if s, ok := v.(string); ok && s != "" {
							name = s
						}
					}
				}
				data[field.Alias] = fmt.Sprintf("Hello, %s!", name)
			case "serverTime":
				data[field.Alias] = time.Now().Format(time.RFC3339)
			}
		}
		return &engine.Result{Data: data}
	}

	subscribe := func(ctx context.Context, args engine.ExecutionArgs) (<-chan *engine.Result, error) {
		op := args.Document.Operations.ForName(args.OperationName)
		if op == nil {
			return nil, fmt.Errorf("operation not found")
		}
		interval := time.Second
		alias := "ticks"
		for _, sel := range op.SelectionSet {
			field, ok := sel.(*language.Field)
			if !ok || field.Name != "ticks" {
				continue
			}
			alias = field.Alias
			if arg := field.Arguments.ForName("intervalMs"); arg != nil {
				if v, err := arg.Value.Value(args.Variables); err == nil {
					if ms, ok := v.(int64); ok && ms > 0 {
						interval = time.Duration(ms) * time.Millisecond
					}
				}
			}
		}

		ch := make(chan *engine.Result)
		go func() {
			defer close(ch)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					res := &engine.Result{Data: map[string]any{alias: now.Format(time.RFC3339Nano)}}
					select {
					case <-ctx.Done():
						return
					case ch <- res:
					}
				}
			}
		}()
		return ch, nil
	}

	return engine.NewRuntime(schema, execute, subscribe), nil
}
