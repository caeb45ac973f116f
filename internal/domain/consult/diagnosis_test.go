package consult

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanPhrases(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "explanatory suffix after colon is dropped",
			raw:  "Angina Pectoris: chest pain on exertion",
			want: []string{"Angina Pectoris"},
		},
		{
			name: "newline separated with enumeration markers",
			raw:  "1. Pneumonia\n2. Acute bronchitis\n3. Pulmonary embolism",
			want: []string{"Pneumonia", "Acute bronchitis", "Pulmonary embolism"},
		},
		{
			name: "comma separated with bullets and dashes",
			raw:  "- Migraine, • Tension headache, * Cluster headache",
			want: []string{"Migraine", "Tension headache", "Cluster headache"},
		},
		{
			name: "trailing quotes stripped and short entries dropped",
			raw:  `"Myocardial infarction", GERD", ok`,
			want: []string{"Myocardial infarction", "GERD"},
		},
		{
			name: "capped at three",
			raw:  "Asthma attack, Heart failure, Pneumothorax, Anaphylaxis",
			want: []string{"Asthma attack", "Heart failure", "Pneumothorax"},
		},
		{
			name: "empty input",
			raw:  "",
			want: []string{},
		},
		{
			name: "only noise",
			raw:  "1.\n2.\n- ok, a",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanPhrases(tt.raw, 3))
		})
	}
}

func TestFirstKeyword(t *testing.T) {
	assert.Equal(t, "acute", FirstKeyword("Acute bronchitis"))
	// Tokens of three characters or fewer are skipped.
	assert.Equal(t, "like", FirstKeyword("a flu like illness"))
	assert.Equal(t, "shot", FirstKeyword("flu shot reaction"))
	assert.Equal(t, "chest", FirstKeyword(`"chest" pain`))
	assert.Equal(t, "", FirstKeyword("flu a an"))
	assert.Equal(t, "", FirstKeyword(""))
}

func TestFinalDiagnosis_ClampConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.8, 0.8},
		{85, 0.85},
		{250, 1},
		{-0.2, 0},
		{0, 0},
		{1, 1},
	}
	for _, tt := range tests {
		d := FinalDiagnosis{Confidence: tt.in}
		d.ClampConfidence()
		assert.Equal(t, tt.want, d.Confidence, "input %v", tt.in)
	}
}

func TestPipelineStage_CanTransition(t *testing.T) {
	// Forward progression.
	assert.True(t, StageIdle.CanTransition(StageExtracting))
	assert.True(t, StageExtracting.CanTransition(StageProposing))
	assert.True(t, StageProposing.CanTransition(StageMapping))
	assert.True(t, StageMapping.CanTransition(StageExplaining))

	// Skipping forward is allowed (stages are independently callable).
	assert.True(t, StageIdle.CanTransition(StageExplaining))

	// Any stage can return to idle.
	assert.True(t, StageExplaining.CanTransition(StageIdle))
	assert.True(t, StageExtracting.CanTransition(StageIdle))

	// Backward into an active stage is not.
	assert.False(t, StageMapping.CanTransition(StageExtracting))
	assert.False(t, StageExplaining.CanTransition(StageProposing))
	assert.False(t, StageExtracting.CanTransition(StageExtracting))

	assert.False(t, StageIdle.CanTransition(PipelineStage("unknown")))
}
