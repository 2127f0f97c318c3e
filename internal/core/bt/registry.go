package bt

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Params carries authored settings for a node type. Values come from JSON or
// YAML documents, so numbers may arrive as int or float64.
type Params map[string]any

func (p Params) String(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// Duration accepts Go duration strings ("250ms") or plain numbers of seconds.
func (p Params) Duration(key string, def time.Duration) time.Duration {
	switch v := p[key].(type) {
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	}
	return def
}

// Factory builds a fresh behaviour for one node from its authored params.
type Factory func(params Params) (Behaviour, error)

// TypeInfo is the metadata the authoring layer needs about a node type.
type TypeInfo struct {
	Name string
	Kind Kind
	// Category is the slash-separated creation path, e.g. "Decorators/Conditions".
	Category string
	New      Factory
}

func (i TypeInfo) DisplayName() string { return DisplayName(i.Name) }

// Registry maps type names to node factories.
type Registry struct {
	mu    sync.RWMutex
	types map[string]TypeInfo
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]TypeInfo)}
}

func (r *Registry) Register(info TypeInfo) error {
	switch {
	case info.Name == "":
		return fmt.Errorf("register node type: empty name")
	case info.Name == RootTypeName || info.Kind == KindRoot:
		return fmt.Errorf("register node type %s: roots are created by the tree", info.Name)
	case info.New == nil:
		return fmt.Errorf("register node type %s: nil factory", info.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[info.Name]; exists {
		return fmt.Errorf("register node type %s: already registered", info.Name)
	}
	r.types[info.Name] = info
	return nil
}

// MustRegister is Register for package initialisation.
func (r *Registry) MustRegister(info TypeInfo) {
	if err := r.Register(info); err != nil {
		panic(err)
	}
}

// Lookup finds a type by its exact name, or by the name without its "Node"
// suffix ("Sequence" finds "SequenceNode").
func (r *Registry) Lookup(name string) (TypeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if info, ok := r.types[name]; ok {
		return info, true
	}
	info, ok := r.types[name+"Node"]
	return info, ok
}

// New creates a detached node of the named type.
func (r *Registry) New(name string, params Params) (*Node, error) {
	info, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	if params == nil {
		params = Params{}
	}
	b, err := info.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", info.Name, err)
	}
	return newNode(info.Kind, info.Name, b), nil
}

// Types lists registered types ordered by category, then name.
func (r *Registry) Types() []TypeInfo {
	r.mu.RLock()
	out := make([]TypeInfo, 0, len(r.types))
	for _, info := range r.types {
		out = append(out, info)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

var (
	builtins     *Registry
	builtinsOnce sync.Once
)

// Builtins returns the shared registry holding the built-in node library.
func Builtins() *Registry {
	builtinsOnce.Do(func() {
		builtins = NewRegistry()
		RegisterBuiltins(builtins)
	})
	return builtins
}

// RegisterBuiltins registers the built-in composites, decorators and leaves.
func RegisterBuiltins(r *Registry) {
	// Composites
	r.MustRegister(TypeInfo{Name: "SequenceNode", Kind: KindComposite, Category: "Composites",
		New: func(Params) (Behaviour, error) { return &Sequence{}, nil }})
	r.MustRegister(TypeInfo{Name: "SelectorNode", Kind: KindComposite, Category: "Composites",
		New: func(Params) (Behaviour, error) { return &Selector{}, nil }})
	r.MustRegister(TypeInfo{Name: "ParallelNode", Kind: KindComposite, Category: "Composites",
		New: func(p Params) (Behaviour, error) {
			policy, err := ParseParallelPolicy(p.String("policy", "all"))
			if err != nil {
				return nil, err
			}
			return &Parallel{Policy: policy}, nil
		}})

	// Decorators
	r.MustRegister(TypeInfo{Name: "InverterNode", Kind: KindDecorator, Category: "Decorators",
		New: func(Params) (Behaviour, error) { return Inverter{}, nil }})
	r.MustRegister(TypeInfo{Name: "SucceederNode", Kind: KindDecorator, Category: "Decorators",
		New: func(Params) (Behaviour, error) { return Succeeder{}, nil }})
	r.MustRegister(TypeInfo{Name: "RepeatNode", Kind: KindDecorator, Category: "Decorators",
		New: func(p Params) (Behaviour, error) {
			return &Repeat{Times: p.Int("times", 1), StopOnFailure: p.Bool("stop_on_failure", false)}, nil
		}})
	r.MustRegister(TypeInfo{Name: "IsTrueNode", Kind: KindDecorator, Category: "Decorators/Conditions",
		New: func(p Params) (Behaviour, error) {
			key := p.String("key", "")
			if key == "" {
				return nil, fmt.Errorf("IsTrue requires 'key'")
			}
			return NewConditional(IsTrue{Key: key}), nil
		}})
	r.MustRegister(TypeInfo{Name: "NullCheckNode", Kind: KindDecorator, Category: "Decorators/Conditions",
		New: func(p Params) (Behaviour, error) {
			key := p.String("key", "")
			if key == "" {
				return nil, fmt.Errorf("NullCheck requires 'key'")
			}
			return NewConditional(NullCheck{Key: key, ShouldBeNull: p.Bool("should_be_null", true)}), nil
		}})
	r.MustRegister(TypeInfo{Name: "CooldownCheckNode", Kind: KindDecorator, Category: "Decorators/Conditions",
		New: func(p Params) (Behaviour, error) {
			tag := p.String("tag", "")
			if tag == "" {
				return nil, fmt.Errorf("CooldownCheck requires 'tag'")
			}
			return NewConditional(NewCooldownCheck(tag)), nil
		}})

	// Leaves
	r.MustRegister(TypeInfo{Name: "SetTagCooldownNode", Kind: KindLeaf, Category: "Actions/Cooldowns",
		New: func(p Params) (Behaviour, error) {
			tag := p.String("tag", "")
			if tag == "" {
				return nil, fmt.Errorf("SetTagCooldown requires 'tag'")
			}
			return NewSetTagCooldown(tag, p.Duration("duration", 0), p.Bool("add_to_existing", false)), nil
		}})
	r.MustRegister(TypeInfo{Name: "SetBoolNode", Kind: KindLeaf, Category: "Actions/Blackboard",
		New: func(p Params) (Behaviour, error) {
			key := p.String("key", "")
			if key == "" {
				return nil, fmt.Errorf("SetBool requires 'key'")
			}
			return SetBool{Key: key, Value: p.Bool("value", true)}, nil
		}})
	r.MustRegister(TypeInfo{Name: "WaitNode", Kind: KindLeaf, Category: "Actions",
		New: func(p Params) (Behaviour, error) { return &Wait{Ticks: p.Int("ticks", 1)}, nil }})
	r.MustRegister(TypeInfo{Name: "SucceedNode", Kind: KindLeaf, Category: "Actions/Debug",
		New: func(Params) (Behaviour, error) { return Constant{Result: StateSuccess}, nil }})
	r.MustRegister(TypeInfo{Name: "FailNode", Kind: KindLeaf, Category: "Actions/Debug",
		New: func(Params) (Behaviour, error) { return Constant{Result: StateFailure}, nil }})
}
