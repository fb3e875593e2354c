package alerting

import (
	"encoding/json"
	"testing"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Describe(t *testing.T) {
	t.Parallel()

	infos := DefaultRegistry().Describe()
	require.Len(t, infos, 4)

	byKey := make(map[string]TriggerInfo, len(infos))
	for _, info := range infos {
		assert.NotEmpty(t, info.Label, "trigger %s has no label", info.Key)
		assert.NotEmpty(t, info.Description, "trigger %s has no description", info.Key)
		assert.NotEmpty(t, info.Params, "trigger %s declares no parameters", info.Key)
		byKey[info.Key] = info
	}

	absences := byKey[RuleConsecutiveAbsences]
	assert.Equal(t, entities.ObjectiveParticipant, absences.Objective)
	require.Len(t, absences.Params, 1)
	assert.Equal(t, ConfigAbsenceThreshold, absences.Params[0].ConfigKey)

	assert.Equal(t, entities.ObjectiveActivity, byKey[RuleFieldOutOfRange].Objective)
	assert.Equal(t, entities.ObjectiveProgram, byKey[RuleLowPlanExecution].Objective)
}

func TestRegistry_DescribeReturnsCopies(t *testing.T) {
	t.Parallel()

	reg := DefaultRegistry()
	infos := reg.Describe()
	infos[0].Params[0].Name = "mutated"

	assert.NotEqual(t, "mutated", reg.Describe()[0].Params[0].Name)
}

func TestTriggerInfo_JSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(DefaultRegistry().Describe()[0])
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"key", "label", "description", "objective_kind", "parameters"} {
		assert.Contains(t, m, key)
	}
}
