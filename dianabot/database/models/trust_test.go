package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageForTrust(t *testing.T) {
	tests := []struct {
		trust float64
		want  string
	}{
		{0.0, StageStranger},
		{0.05, StageStranger},
		{0.10, StageCurious},
		{0.19, StageCurious},
		{0.20, StageAcquaintance},
		{0.40, StageTrusted},
		{0.59, StageTrusted},
		{0.60, StageConfidant},
		{0.80, StageIntimate},
		{1.0, StageIntimate},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StageForTrust(tt.trust), "trust=%v", tt.trust)
	}
}

func TestStageRank_Ordering(t *testing.T) {
	ordered := []string{
		StageStranger,
		StageCurious,
		StageAcquaintance,
		StageTrusted,
		StageConfidant,
		StageIntimate,
	}

	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, StageRank(ordered[i]), StageRank(ordered[i-1]))
	}
	assert.Equal(t, -1, StageRank("soulmate"))
}
