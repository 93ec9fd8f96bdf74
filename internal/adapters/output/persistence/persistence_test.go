package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunDreame/st-bridge/internal/domain/model"
)

func TestOptionsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.json")
	repo := NewJSONOptionsRepository(path)
	ctx := context.Background()

	opts := &model.Options{Entities: []model.EntityOption{
		{EntityID: "light.kitchen"},
		{EntityID: "light.desk", BrightnessFormula: "x / 2"},
		{EntityID: "climate.living_room"},
	}}
	require.NoError(t, repo.Save(ctx, opts))

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, opts, got)
}

func TestOptionsMissingFile(t *testing.T) {
	repo := NewJSONOptionsRepository(filepath.Join(t.TempDir(), "nope.json"))

	got, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Entities)
}

func TestOptionsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := NewJSONOptionsRepository(path).Get(context.Background())
	assert.Error(t, err)
}

func TestSelectedFiltersDomains(t *testing.T) {
	opts := &model.Options{Entities: []model.EntityOption{
		{EntityID: "light.kitchen"},
		{EntityID: "cover.garage"},
		{EntityID: "media_player.tv"},
	}}
	selected := opts.Selected()
	assert.Len(t, selected, 1)
	assert.Contains(t, selected, "light.kitchen")
}
