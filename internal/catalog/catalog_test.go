package catalog

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_BuiltinTests(t *testing.T) {
	c := Default()

	ids := []string{}
	for _, tt := range c.Tests() {
		ids = append(ids, tt.ID)
	}
	assert.Equal(t, []string{"parkinson", "alzheimer"}, ids)

	pd, ok := c.Test("parkinson")
	require.True(t, ok)
	assert.True(t, pd.Fallback)
	assert.Len(t, pd.Fields, 7)

	f, ok := pd.Field("cognitive")
	require.True(t, ok)
	assert.Equal(t, "cognitive.cogchq", f.Feature)
	assert.Equal(t, 1.0, f.Max)

	ad, ok := c.Test("alzheimer")
	require.True(t, ok)
	assert.False(t, ad.Fallback)
	assert.Len(t, ad.Fields, 7)

	for _, tt := range c.Tests() {
		for _, f := range tt.Fields {
			assert.LessOrEqual(t, f.Min, f.Max, "%s.%s", tt.ID, f.Key)
		}
	}
}

func TestFieldSpec_Placeholder(t *testing.T) {
	f := FieldSpec{Min: 2.0, Max: 3.5}
	assert.Equal(t, "2 - 3.5", f.Placeholder())
}

func TestParse_RejectsMinAboveMax(t *testing.T) {
	_, err := Parse([]byte(`
tests:
  - id: broken
    fields:
      - key: a
        min: 5
        max: 1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min 5 > max 1")
}

func TestParse_RejectsDuplicates(t *testing.T) {
	_, err := Parse([]byte(`
tests:
  - id: a
    fields:
      - {key: x, min: 0, max: 1}
      - {key: x, min: 0, max: 1}
`))
	require.Error(t, err)

	_, err = Parse([]byte(`
tests:
  - id: a
    fields: [{key: x, min: 0, max: 1}]
  - id: a
    fields: [{key: y, min: 0, max: 1}]
`))
	require.Error(t, err)
}

func TestLoad_DefaultsFeatureAndLabel(t *testing.T) {
	fsys := fstest.MapFS{
		"custom.yaml": {Data: []byte(`
tests:
  - id: epilepsy
    endpoint: /predict/epilepsy
    fields:
      - {key: spikes, min: 0, max: 100}
`)},
	}

	c, err := Load(fsys, "custom.yaml")
	require.NoError(t, err)

	tt, ok := c.Test("epilepsy")
	require.True(t, ok)
	assert.Equal(t, "spikes", tt.Fields[0].Feature)
	assert.Equal(t, "spikes", tt.Fields[0].Label)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(fstest.MapFS{}, "nope.yaml")
	require.Error(t, err)
}
