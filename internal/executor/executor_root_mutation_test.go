package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	schema "github.com/hanpama/gqlexec/internal/schema"
)

type mutationLog struct {
	mu      sync.Mutex
	order   []string
	active  int
	overlap bool
}

func (l *mutationLog) resolver(name string, d time.Duration, err error) schema.ResolveFunc {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		l.mu.Lock()
		l.active++
		if l.active > 1 {
			l.overlap = true
		}
		l.order = append(l.order, name)
		l.mu.Unlock()

		time.Sleep(d)

		l.mu.Lock()
		l.active--
		l.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return name, nil
	}
}

const mutationSDL = `
type Query { noop: String }
type Mutation {
  first: String
  second: String!
  third: String
}
`

func TestRootMutation_Serial(t *testing.T) {
	log := &mutationLog{}
	sch := mustBuild(t, schema.NewBuilder().AddSDL(mutationSDL).
		Resolve("Mutation", "first", log.resolver("first", 20*time.Millisecond, nil)).
		Resolve("Mutation", "second", log.resolver("second", 10*time.Millisecond, nil)).
		Resolve("Mutation", "third", log.resolver("third", 0, nil)))
	exec := NewExecutor(NewSchemaRuntime(sch), sch)

	res := run(t, exec, "mutation { third first second again: first }", nil)
	require.Empty(t, res.Errors)
	requireData(t, `{"third": "third", "first": "first", "second": "second", "again": "first"}`, res)
	require.Equal(t, []string{"third", "first", "second", "first"}, log.order)
	require.False(t, log.overlap)
}

func TestRootMutation_StopsAfterNonNullFailure(t *testing.T) {
	log := &mutationLog{}
	sch := mustBuild(t, schema.NewBuilder().AddSDL(mutationSDL).
		Resolve("Mutation", "first", log.resolver("first", 0, errors.New("first failed"))).
		Resolve("Mutation", "second", log.resolver("second", 0, errors.New("second failed"))).
		Resolve("Mutation", "third", log.resolver("third", 0, nil)))
	exec := NewExecutor(NewSchemaRuntime(sch), sch)

	res := run(t, exec, "mutation { first second third }", nil)
	requireData(t, `null`, res)
	requireErrors(t, []GraphQLError{
		{Message: "first failed", Path: Path{"first"}},
		{Message: "second failed", Path: Path{"second"}},
	}, res.Errors)
	require.Equal(t, []string{"first", "second"}, log.order)
}
