package stage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/modelseed-go/internal/stage"
)

func TestFactoryUnknownType(t *testing.T) {
	_, err := stage.New(stage.KindSeeder, "nonexistent", newDeps(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, stage.ErrUnknownType)
	assert.Contains(t, err.Error(), "nonexistent")
}

func TestFactoryRegisteredTypes(t *testing.T) {
	tests := []struct {
		kind stage.Kind
		want []string
	}{
		{stage.KindExtractor, []string{"jsonfile", "ollama"}},
		{stage.KindEnricher, []string{"hub", "metadata"}},
		{stage.KindTagMapper, []string{"fallback", "simple"}},
		{stage.KindModelMapper, []string{"standard"}},
		{stage.KindSeeder, []string{"api", "mock"}},
		{stage.KindArchiver, []string{"metadata", "simple"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stage.Types(tt.kind), "kind %s", tt.kind)
	}
}

func TestFactoryBuildsMockSeeder(t *testing.T) {
	st, err := stage.New(stage.KindSeeder, "mock", newDeps(t))
	require.NoError(t, err)
	assert.Equal(t, stage.NameSeed, st.Name())
	assert.NotNil(t, st.Input())
}

func TestFactoryConstructorValidatesDeps(t *testing.T) {
	// The API seeder needs a catalog client.
	deps := newDeps(t)
	deps.Catalog = nil
	_, err := stage.New(stage.KindSeeder, "api", deps)
	assert.Error(t, err)
}
