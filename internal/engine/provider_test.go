package engine

import (
	"context"
	"testing"

	language "github.com/gqlgate/gqlgate/internal/language"
	"github.com/stretchr/testify/require"
)

func stampRuntime(t *testing.T, stamp string) *Runtime {
	t.Helper()
	schema, err := language.LoadSchema("test", `type Query { hello: String }`)
	require.NoError(t, err)
	execute := func(ctx context.Context, args ExecutionArgs) *Result {
		return &Result{Data: stamp}
	}
	return NewRuntime(schema, execute, nil)
}

func TestResolveObservesSwappedImplementation(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(stampRuntime(t, "original"))

	rt1, err := p.Resolve(ctx)
	require.NoError(t, err)
	require.Equal(t, "original", rt1.Execute(ctx, ExecutionArgs{}).Data)

	p.Use(stampRuntime(t, "instrumented"))

	rt2, err := p.Resolve(ctx)
	require.NoError(t, err)
	require.Equal(t, "instrumented", rt2.Execute(ctx, ExecutionArgs{}).Data)

	// The earlier snapshot keeps its own implementations for the
	// operation that resolved it.
	require.Equal(t, "original", rt1.Execute(ctx, ExecutionArgs{}).Data)
}

func TestWrapLayersOntoCurrentRuntime(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(stampRuntime(t, "base"))

	var calls int
	p.Wrap(func(rt Runtime) Runtime {
		base := rt.Execute
		rt.Execute = func(ctx context.Context, args ExecutionArgs) *Result {
			calls++
			return base(ctx, args)
		}
		return rt
	})

	rt, err := p.Resolve(ctx)
	require.NoError(t, err)
	res := rt.Execute(ctx, ExecutionArgs{})
	require.Equal(t, "base", res.Data)
	require.Equal(t, 1, calls)
}

func TestResolveWithoutRuntimeFails(t *testing.T) {
	p := NewProvider(nil)
	_, err := p.Resolve(context.Background())
	require.ErrorIs(t, err, ErrNoRuntime)
}

func TestNewRuntimeFillsDefaults(t *testing.T) {
	rt := stampRuntime(t, "x")
	require.NotNil(t, rt.Parse)
	require.NotNil(t, rt.Validate)
	require.NotNil(t, rt.BuildContext)

	doc, err := rt.Parse(`{ hello }`)
	require.NoError(t, err)
	require.Empty(t, rt.Validate(rt.Schema, doc))

	doc2, err := rt.Parse(`{ nope }`)
	require.NoError(t, err)
	require.NotEmpty(t, rt.Validate(rt.Schema, doc2))

	_, err = rt.Parse(`{`)
	require.Error(t, err)
}
