package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
)

type flavor string

const (
	flavorCPU flavor = "cpu"
	flavorGPU flavor = "gpu"
)

func newFlavorNormalizer() *Normalizer[flavor] {
	return NewNormalizer("variant", map[string]flavor{
		"cpu":      flavorCPU,
		"gpu":      flavorGPU,
		"graphite": flavorGPU,
	}, flavorCPU)
}

func TestNormalize(t *testing.T) {
	n := newFlavorNormalizer()

	tests := []struct {
		input    string
		expected flavor
	}{
		{"cpu", flavorCPU},
		{"GPU", flavorGPU},
		{"  graphite ", flavorGPU},
		{"", flavorCPU},
		{"metal", flavorCPU},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Normalize(tt.input))
		})
	}
}

func TestParse(t *testing.T) {
	n := newFlavorNormalizer()

	got, err := n.Parse(" Gpu")
	require.NoError(t, err)
	assert.Equal(t, flavorGPU, got)

	got, err = n.Parse("")
	require.NoError(t, err)
	assert.Equal(t, flavorCPU, got)

	_, err = n.Parse("metal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid variant "metal"`)
	assert.Contains(t, err.Error(), "cpu, gpu, graphite")
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestValidKeys(t *testing.T) {
	n := newFlavorNormalizer()
	keys := n.ValidKeys()
	assert.Equal(t, []string{"cpu", "gpu", "graphite"}, keys)

	keys[0] = "mutated"
	assert.Equal(t, "cpu", n.ValidKeys()[0])
	assert.True(t, n.IsValid("GRAPHITE"))
	assert.False(t, n.IsValid("vulkan"))
}
