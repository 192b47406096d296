package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/risor-io/risor/object"
)

// Declaration is a trait declaration reported by a script.
type Declaration struct {
	Name string
	Line int // 1-based; 0 when the script did not supply one
}

// Collector gathers the declarations a script reports through its "emit"
// host function.
type Collector struct {
	mu    sync.Mutex
	decls []Declaration
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Declarations returns what has been emitted so far, in emit order.
func (c *Collector) Declarations() []Declaration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Declaration, len(c.decls))
	copy(out, c.decls)
	return out
}

// Globals returns the extra globals that wire the Collector into a script.
//
// emit(name) or emit(name, line)
func (c *Collector) Globals() map[string]any {
	return map[string]any{
		"emit": object.NewBuiltin("emit", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) < 1 || len(args) > 2 {
				return object.Errorf("emit: expected 1 or 2 arguments, got %d", len(args))
			}
			name, err := toString(args[0])
			if err != nil {
				return object.Errorf("emit: name: %v", err)
			}
			d := Declaration{Name: name}
			if len(args) == 2 {
				line, err := toInt64(args[1])
				if err != nil {
					return object.Errorf("emit: line: %v", err)
				}
				d.Line = int(line)
			}
			c.mu.Lock()
			c.decls = append(c.decls, d)
			c.mu.Unlock()
			return object.Nil
		}),
	}
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
