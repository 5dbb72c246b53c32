package services

import (
	"context"
	"testing"

	"categorizer/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.settings.Get(ctx, core.SettingInitialBalance)
	require.NoError(t, err)
	assert.Zero(t, s.ID)
	require.NotNil(t, s.Value)
	assert.Equal(t, "0.00", core.FormatAmount(*s.Value))

	_, err = f.settings.Get(ctx, "theme")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSettingsSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.settings.Set(ctx, core.SettingFinalRunningBalance, strPtr("1234,5"))
	require.NoError(t, err)
	assert.NotZero(t, s.ID)
	assert.Equal(t, "1234.50", core.FormatAmount(*s.Value))

	got, err := f.settings.Get(ctx, core.SettingFinalRunningBalance)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "1234.50", core.FormatAmount(*got.Value))

	_, err = f.settings.Set(ctx, "theme", strPtr("1"))
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.settings.Set(ctx, core.SettingInitialBalance, strPtr("lots"))
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.settings.Set(ctx, core.SettingInitialBalance, nil)
	assert.ErrorIs(t, err, core.ErrValidation)

	all, err := f.settings.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
