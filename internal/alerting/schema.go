package alerting

import "github.com/ngoprog/alertengine/internal/datastore/entities"

// TriggerInfo describes a registered trigger for rule editors.
type TriggerInfo struct {
	Key         string                 `json:"key"`
	Label       string                 `json:"label"`
	Description string                 `json:"description"`
	Objective   entities.ObjectiveKind `json:"objective_kind"`
	Params      []ParamSpec            `json:"parameters"`
}

// Describe lists every registered trigger, ordered by key.
func (r *Registry) Describe() []TriggerInfo {
	keys := r.Keys()
	out := make([]TriggerInfo, 0, len(keys))
	for _, k := range keys {
		t, ok := r.Lookup(k)
		if !ok {
			continue
		}
		out = append(out, TriggerInfo{
			Key:         t.Key,
			Label:       t.Label,
			Description: t.Description,
			Objective:   t.Objective,
			Params:      append([]ParamSpec(nil), t.Params...),
		})
	}
	return out
}
