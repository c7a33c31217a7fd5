// Package fixture loads static response data for serving a schema without
// resolvers. A fixture document, written in YAML or JSON, looks like:
//
//	root:
//	  hello: world
//	  users:
//	    - {__typename: User, id: 1, name: Ada}
//	subscriptions:
//	  ticks: [1, 2, 3]
//	interval: 500ms
//
// root is the root value of query and mutation operations. Each entry of
// subscriptions lists the events streamed for the subscription field of the
// same name, interval apart.
package fixture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	executor "github.com/hanpama/gqlexec/internal/executor"
)

// Data is a parsed fixture document.
type Data struct {
	Root          map[string]any   `yaml:"root"`
	Subscriptions map[string][]any `yaml:"subscriptions"`
	Interval      time.Duration    `yaml:"interval"`
}

// Load reads a fixture file.
func Load(path string) (*Data, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Parse decodes a fixture document. Unknown top-level keys are rejected.
// An empty document yields empty data.
func Parse(b []byte) (*Data, error) {
	d := &Data{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(d); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if d.Interval < 0 {
		return nil, fmt.Errorf("interval must not be negative")
	}
	if d.Root == nil {
		d.Root = map[string]any{}
	}
	return d, nil
}

// Runtime serves subscription fields from fixture events. Other fields are
// resolved by the embedded runtime.
type Runtime struct {
	executor.Runtime
	data *Data
}

var _ executor.Subscriber = (*Runtime)(nil)

// Runtime wraps base so that subscriptions stream the fixture's events.
func (d *Data) Runtime(base executor.Runtime) *Runtime {
	return &Runtime{Runtime: base, data: d}
}

func (r *Runtime) Subscribe(ctx context.Context, objectType string, field string, source any, args map[string]any) (<-chan any, error) {
	evs, ok := r.data.Subscriptions[field]
	if !ok {
		if sub, ok := r.Runtime.(executor.Subscriber); ok {
			return sub.Subscribe(ctx, objectType, field, source, args)
		}
		return nil, fmt.Errorf("no fixture events for %s.%s", objectType, field)
	}
	ch := make(chan any)
	go func() {
		defer close(ch)
		for i, ev := range evs {
			if i > 0 && r.data.Interval > 0 {
				t := time.NewTimer(r.data.Interval)
				select {
				case <-t.C:
				case <-ctx.Done():
					t.Stop()
					return
				}
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
