package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gqlgate/gqlgate/internal/engine"
	"github.com/gqlgate/gqlgate/internal/language"
)

func TestRunUnknownCommand(t *testing.T) {
	if err := run([]string{"bogus"}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestRunMissingCommand(t *testing.T) {
	if err := run(nil); err == nil {
		t.Fatal("expected error for missing command")
	}
}

func TestHelpTopics(t *testing.T) {
	if err := cmdHelp(nil); err != nil {
		t.Fatalf("help: %v", err)
	}
	if err := cmdHelp([]string{"serve"}); err != nil {
		t.Fatalf("help serve: %v", err)
	}
	if err := cmdHelp([]string{"nope"}); err == nil {
		t.Fatal("expected error for unknown topic")
	}
}

func TestDemoRuntimeQuery(t *testing.T) {
	rt, err := demoRuntime()
	if err != nil {
		t.Fatalf("demo runtime: %v", err)
	}
	doc, err := rt.Parse(`{ hello(name: "gopher") }`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if errs := rt.Validate(rt.Schema, doc); len(errs) > 0 {
		t.Fatalf("validate: %v", errs)
	}
	res := rt.Execute(context.Background(), engine.ExecutionArgs{Document: doc})
	data, ok := res.Data.(map[string]any)
	if !ok || data["hello"] != "Hello, gopher!" {
		t.Fatalf("unexpected result: %#v", res.Data)
	}
}

func TestDemoRuntimeSubscription(t *testing.T) {
	rt, err := demoRuntime()
	if err != nil {
		t.Fatalf("demo runtime: %v", err)
	}
	doc, err := language.ParseQuery(`subscription { ticks(intervalMs: 10) }`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := rt.Subscribe(ctx, engine.ExecutionArgs{Document: doc})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	select {
	case res := <-ch:
		data, ok := res.Data.(map[string]any)
		if !ok || data["ticks"] == "" {
			t.Fatalf("unexpected tick: %#v", res.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick produced")
	}
	cancel()
	for range ch {
	}
}
