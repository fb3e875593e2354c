package alerting

import (
	"context"
	"slices"
	"strings"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/datastore/repository"
	"github.com/ngoprog/alertengine/internal/errors"
)

// Config value sources reported by ResolveWithSource.
const (
	SourceOverride = "override"
	SourceGlobal   = "global"
)

// ResolvedValue is an effective configuration value and where it came from.
type ResolvedValue struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Source    string `json:"source"`
	ProgramID *uint  `json:"program_id,omitempty"`
}

// Resolver merges global configuration with per-program overrides.
type Resolver struct {
	src ConfigSource
}

// NewResolver creates a resolver over src.
func NewResolver(src ConfigSource) *Resolver {
	return &Resolver{src: src}
}

// Resolve returns the override for programID when one exists, else the global
// value. ErrConfigNotFound is returned when neither exists.
func (r *Resolver) Resolve(ctx context.Context, key string, programID *uint) (string, error) {
	v, err := r.ResolveWithSource(ctx, key, programID)
	if err != nil {
		return "", err
	}
	return v.Value, nil
}

// ResolveWithSource is Resolve reporting which layer supplied the value.
func (r *Resolver) ResolveWithSource(ctx context.Context, key string, programID *uint) (ResolvedValue, error) {
	if programID != nil {
		o, err := r.src.GetOverride(ctx, *programID, key)
		switch {
		case err == nil:
			return ResolvedValue{Key: key, Value: o.Value, Source: SourceOverride, ProgramID: programID}, nil
		case !errors.Is(err, repository.ErrConfigNotFound):
			return ResolvedValue{}, err
		}
	}
	e, err := r.src.GetEntry(ctx, key)
	if err != nil {
		return ResolvedValue{}, err
	}
	return ResolvedValue{Key: key, Value: e.Value, Source: SourceGlobal, ProgramID: programID}, nil
}

// Snapshot loads all configuration once. Evaluation runs resolve against the
// snapshot so edits made mid-run are not observed.
func (r *Resolver) Snapshot(ctx context.Context) (*Snapshot, error) {
	entries, overrides, err := r.src.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(entries, overrides), nil
}

// Snapshot is an immutable view of configuration.
type Snapshot struct {
	global    map[string]string
	overrides map[uint]map[string]string
}

// NewSnapshot builds a snapshot from entries and overrides.
func NewSnapshot(entries []entities.ConfigEntry, overrides []entities.ConfigOverride) *Snapshot {
	s := &Snapshot{
		global:    make(map[string]string, len(entries)),
		overrides: make(map[uint]map[string]string),
	}
	for i := range entries {
		s.global[entries[i].Key] = entries[i].Value
	}
	for i := range overrides {
		o := &overrides[i]
		if s.overrides[o.ProgramID] == nil {
			s.overrides[o.ProgramID] = make(map[string]string)
		}
		s.overrides[o.ProgramID][o.Key] = o.Value
	}
	return s
}

// Lookup resolves key for programID: override, then global.
func (s *Snapshot) Lookup(key string, programID *uint) (string, bool) {
	if s == nil {
		return "", false
	}
	if programID != nil {
		if v, ok := s.overrides[*programID][key]; ok {
			return v, true
		}
	}
	v, ok := s.global[key]
	return v, ok
}

// Effective returns every key visible to programID with its source.
func (s *Snapshot) Effective(programID *uint) []ResolvedValue {
	keys := make(map[string]struct{}, len(s.global))
	for k := range s.global {
		keys[k] = struct{}{}
	}
	if programID != nil {
		for k := range s.overrides[*programID] {
			keys[k] = struct{}{}
		}
	}
	out := make([]ResolvedValue, 0, len(keys))
	for k := range keys {
		rv := ResolvedValue{Key: k, Source: SourceGlobal, ProgramID: programID}
		if programID != nil {
			if v, ok := s.overrides[*programID][k]; ok {
				rv.Value, rv.Source = v, SourceOverride
				out = append(out, rv)
				continue
			}
		}
		rv.Value = s.global[k]
		out = append(out, rv)
	}
	slices.SortFunc(out, func(a, b ResolvedValue) int { return strings.Compare(a.Key, b.Key) })
	return out
}
