package alerting

import (
	"context"
	"fmt"
	"testing"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/datastore/repository"
	"github.com/ngoprog/alertengine/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolverConfig() *fakeConfig {
	return &fakeConfig{
		entries: []entities.ConfigEntry{
			{Key: ConfigAbsenceThreshold, Value: "3"},
			{Key: ConfigMinAttendance, Value: "75"},
		},
		overrides: []entities.ConfigOverride{
			{ProgramID: 7, Key: ConfigAbsenceThreshold, Value: "5"},
		},
	}
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	r := NewResolver(resolverConfig())
	ctx := context.Background()

	v, err := r.ResolveWithSource(ctx, ConfigAbsenceThreshold, uintPtr(7))
	require.NoError(t, err)
	assert.Equal(t, "5", v.Value)
	assert.Equal(t, SourceOverride, v.Source)

	v, err = r.ResolveWithSource(ctx, ConfigAbsenceThreshold, uintPtr(8))
	require.NoError(t, err)
	assert.Equal(t, "3", v.Value)
	assert.Equal(t, SourceGlobal, v.Source)

	got, err := r.Resolve(ctx, ConfigMinAttendance, nil)
	require.NoError(t, err)
	assert.Equal(t, "75", got)

	_, err = r.Resolve(ctx, "MISSING", uintPtr(7))
	assert.ErrorIs(t, err, repository.ErrConfigNotFound)
}

type brokenOverrides struct{ *fakeConfig }

func (brokenOverrides) GetOverride(context.Context, uint, string) (*entities.ConfigOverride, error) {
	return nil, fmt.Errorf("connection refused")
}

func TestResolver_OverrideLookupFailureIsReturned(t *testing.T) {
	t.Parallel()

	r := NewResolver(brokenOverrides{resolverConfig()})
	_, err := r.Resolve(context.Background(), ConfigAbsenceThreshold, uintPtr(7))
	require.Error(t, err)
	assert.False(t, errors.Is(err, repository.ErrConfigNotFound))
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	cfg := resolverConfig()
	snap, err := NewResolver(cfg).Snapshot(context.Background())
	require.NoError(t, err)

	v, ok := snap.Lookup(ConfigAbsenceThreshold, uintPtr(7))
	assert.True(t, ok)
	assert.Equal(t, "5", v)
	v, ok = snap.Lookup(ConfigAbsenceThreshold, nil)
	assert.True(t, ok)
	assert.Equal(t, "3", v)
	_, ok = snap.Lookup("MISSING", nil)
	assert.False(t, ok)

	cfg.entries[0].Value = "99"
	v, _ = snap.Lookup(ConfigAbsenceThreshold, nil)
	assert.Equal(t, "3", v, "snapshot does not observe later edits")

	var nilSnap *Snapshot
	_, ok = nilSnap.Lookup(ConfigAbsenceThreshold, nil)
	assert.False(t, ok)
}

func TestSnapshot_Effective(t *testing.T) {
	t.Parallel()

	snap := NewSnapshot(resolverConfig().entries, resolverConfig().overrides)

	assert.Equal(t, []ResolvedValue{
		{Key: ConfigMinAttendance, Value: "75", Source: SourceGlobal, ProgramID: uintPtr(7)},
		{Key: ConfigAbsenceThreshold, Value: "5", Source: SourceOverride, ProgramID: uintPtr(7)},
	}, snap.Effective(uintPtr(7)))

	assert.Equal(t, []ResolvedValue{
		{Key: ConfigMinAttendance, Value: "75", Source: SourceGlobal},
		{Key: ConfigAbsenceThreshold, Value: "3", Source: SourceGlobal},
	}, snap.Effective(nil))
}
