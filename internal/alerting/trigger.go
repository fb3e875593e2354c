package alerting

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"golang.org/x/text/message"
)

// ParamSpec declares one parameter a trigger consumes.
type ParamSpec struct {
	Name        string             `json:"name"`
	Type        entities.ParamType `json:"type"`
	Required    bool               `json:"required"`
	Default     string             `json:"default,omitempty"`
	ConfigKey   string             `json:"config_key,omitempty"`
	Description string             `json:"description"`
}

// EvalInput is everything a trigger needs for one rule and subject pair.
// Params already has configuration overrides applied.
type EvalInput struct {
	Rule    *entities.Rule
	Subject entities.Subject
	Cutoff  time.Time
	Params  Params
	Printer *message.Printer
}

// Features are the signals a trigger fetched, by name. A missing name means
// the provider had no value.
type Features map[string]float64

// Get returns a feature and whether it is present.
func (f Features) Get(name string) (float64, bool) {
	v, ok := f[name]
	return v, ok
}

// Verdict is the result of a trigger check.
type Verdict struct {
	Triggered bool
	Message   string
}

// FetchFunc gathers the features a trigger needs. It is the only part of
// evaluation allowed to block.
type FetchFunc func(ctx context.Context, fp FeatureProvider, in EvalInput) (Features, error)

// CheckFunc is the pure trigger predicate.
type CheckFunc func(in EvalInput, f Features) (Verdict, error)

// Trigger binds a rule key to its objective, parameters and predicate.
type Trigger struct {
	Key         string
	Label       string
	Description string
	Objective   entities.ObjectiveKind
	Params      []ParamSpec
	Fetch       FetchFunc
	Check       CheckFunc
}

// Registry maps rule keys to triggers. Rules whose key is not registered fail
// validation.
type Registry struct {
	mu       sync.RWMutex
	triggers map[string]Trigger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{triggers: make(map[string]Trigger)}
}

// Register adds a trigger. Keys may be registered only once.
func (r *Registry) Register(t Trigger) error {
	if t.Key == "" {
		return fmt.Errorf("trigger key is required")
	}
	if !t.Objective.Valid() {
		return fmt.Errorf("trigger %s: invalid objective %q", t.Key, t.Objective)
	}
	if t.Fetch == nil || t.Check == nil {
		return fmt.Errorf("trigger %s: fetch and check functions are required", t.Key)
	}
	for _, spec := range t.Params {
		if !spec.Type.Valid() {
			return fmt.Errorf("trigger %s: parameter %s has invalid type %q", t.Key, spec.Name, spec.Type)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.triggers[t.Key]; exists {
		return fmt.Errorf("trigger %s already registered", t.Key)
	}
	r.triggers[t.Key] = t
	return nil
}

// MustRegister is Register for static initialisation.
func (r *Registry) MustRegister(t Trigger) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup returns the trigger registered for key.
func (r *Registry) Lookup(key string) (Trigger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.triggers[key]
	return t, ok
}

// Keys returns the registered keys in ascending order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.triggers))
	for k := range r.triggers {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Bind validates rule against its registered trigger and returns the trigger
// with the rule's parsed parameters, defaults filled in.
func (r *Registry) Bind(rule *entities.Rule) (Trigger, Params, error) {
	t, ok := r.Lookup(rule.Key)
	if !ok {
		return Trigger{}, nil, validationError(rule.Key, "no trigger registered for rule key %s", rule.Key)
	}
	if rule.ObjectiveKind != t.Objective {
		return Trigger{}, nil, validationError(rule.Key, "rule objective %s does not match trigger objective %s", rule.ObjectiveKind, t.Objective)
	}
	params, err := ParseRuleParams(rule)
	if err != nil {
		return Trigger{}, nil, err
	}
	for _, spec := range t.Params {
		v, present := params[spec.Name]
		switch {
		case present && v.Type != spec.Type && !(spec.Type == entities.ParamDecimal && v.Type == entities.ParamInteger):
			return Trigger{}, nil, validationError(rule.Key, "parameter %s must be %s, got %s", spec.Name, spec.Type, v.Type)
		case !present && spec.Default != "":
			dv, err := ParseValue(spec.Type, spec.Default)
			if err != nil {
				return Trigger{}, nil, validationError(rule.Key, "parameter %s default: %v", spec.Name, err)
			}
			params[spec.Name] = dv
		case !present && spec.Required && spec.ConfigKey == "":
			return Trigger{}, nil, validationError(rule.Key, "missing required parameter %s", spec.Name)
		}
	}
	return t, params, nil
}

// ConfigLookup resolves a configuration key for a program.
type ConfigLookup interface {
	Lookup(key string, programID *uint) (string, bool)
}

// ApplyConfig returns params with configuration values layered on top: a
// configured key wins over the rule parameter. Required parameters still
// missing afterwards are a validation error.
func (t Trigger) ApplyConfig(ruleKey string, params Params, cfg ConfigLookup, programID *uint) (Params, error) {
	out := params
	copied := false
	for _, spec := range t.Params {
		if spec.ConfigKey != "" && cfg != nil {
			if raw, ok := cfg.Lookup(spec.ConfigKey, programID); ok {
				v, err := ParseValue(spec.Type, raw)
				if err != nil {
					return nil, validationError(ruleKey, "config %s: %v", spec.ConfigKey, err)
				}
				if !copied {
					out, copied = params.clone(), true
				}
				out[spec.Name] = v
			}
		}
		if spec.Required && !out.Has(spec.Name) {
			return nil, validationError(ruleKey, "missing required parameter %s", spec.Name)
		}
	}
	return out, nil
}
