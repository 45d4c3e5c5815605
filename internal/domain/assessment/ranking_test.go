package assessment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRank_SortsDescending(t *testing.T) {
	p := FromPredictions([]Prediction{
		{Label: "A", Confidence: 0.1},
		{Label: "B", Confidence: 0.7},
		{Label: "C", Confidence: 0.2},
	})

	got := Rank(p, TopRanked)

	require.Len(t, got, 3)
	assert.Equal(t, "B", got[0].Label)
	assert.InDelta(t, 70, got[0].Percentage, 1e-9)
	assert.Equal(t, "C", got[1].Label)
	assert.InDelta(t, 20, got[1].Percentage, 1e-9)
	assert.Equal(t, "A", got[2].Label)
	assert.InDelta(t, 10, got[2].Percentage, 1e-9)
}

func TestRank_TruncatesToLimit(t *testing.T) {
	var p Probabilities
	for i, label := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		p.Set(label, float64(i)/10)
	}

	got := Rank(p, TopRanked)

	require.Len(t, got, TopRanked)
	assert.Equal(t, "g", got[0].Label)
	assert.Equal(t, "c", got[4].Label)
}

func TestRank_TiesKeepInsertionOrder(t *testing.T) {
	var p Probabilities
	p.Set("second", 0.25)
	p.Set("first", 0.5)
	p.Set("third", 0.25)
	p.Set("fourth", 0.25)

	got := Rank(p, 0)

	labels := make([]string, 0, len(got))
	for _, r := range got {
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []string{"first", "second", "third", "fourth"}, labels)
}

func TestRank_Empty(t *testing.T) {
	got := Rank(Probabilities{}, TopRanked)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestProbabilities_LastWriteWinsKeepsPosition(t *testing.T) {
	p := FromPredictions([]Prediction{
		{Label: "Melanoma", Confidence: 0.4},
		{Label: "Nevus", Confidence: 0.05},
		{Label: "Melanoma", Confidence: 0.9},
	})

	assert.Equal(t, 2, p.Len())
	assert.Equal(t, []string{"Melanoma", "Nevus"}, p.Labels())
	v, ok := p.Get("Melanoma")
	assert.True(t, ok)
	assert.Equal(t, 0.9, v)
}

func TestProbabilities_JSONKeepsOrder(t *testing.T) {
	var p Probabilities
	p.Set("Zeta", 0.5)
	p.Set("Alpha", 0.25)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Zeta":0.5,"Alpha":0.25}`, string(b))
	assert.Equal(t, `{"Zeta":0.5,"Alpha":0.25}`, string(b))

	var back Probabilities
	require.NoError(t, json.Unmarshal([]byte(`{"Zeta":0.5,"Alpha":0.25}`), &back))
	assert.Equal(t, []string{"Zeta", "Alpha"}, back.Labels())
	assert.Equal(t, map[string]float64{"Zeta": 0.5, "Alpha": 0.25}, back.Map())
}

func TestProbabilities_UnmarshalRejectsNonObject(t *testing.T) {
	var p Probabilities
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &p))
	assert.NoError(t, json.Unmarshal([]byte(`null`), &p))
	assert.Equal(t, 0, p.Len())
}

func TestNewFile_CopiesData(t *testing.T) {
	data := []byte("abc")
	f := NewFile("lesion.png", "image/png", data)
	data[0] = 'z'

	assert.Equal(t, []byte("abc"), f.Data)
	assert.Equal(t, int64(3), f.Size)
}
