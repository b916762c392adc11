package readiness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_IDs(t *testing.T) {
	assert.Equal(t, "readiness_low", LevelLow.ID())
	assert.Equal(t, "readiness_medium", LevelMedium.ID())
	assert.Equal(t, "readiness_high", LevelHigh.ID())
	assert.Equal(t, "", Level(0).ID())

	assert.Equal(t, "Medium", LevelMedium.DisplayName())
	assert.True(t, LevelLow < LevelMedium && LevelMedium < LevelHigh)
	assert.True(t, LevelHigh.AtLeast(LevelMedium))
	assert.False(t, LevelLow.AtLeast(LevelMedium))
}

func TestParseLevel(t *testing.T) {
	for _, in := range []string{"medium", "MEDIUM", "readiness_medium", " medium "} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, LevelMedium, got)
	}

	_, err := ParseLevel("excellent")
	assert.Error(t, err)
}

func TestParseSeverity(t *testing.T) {
	tests := map[string]Severity{
		"error":       SeverityError,
		"warn":        SeverityWarning,
		"Warning":     SeverityWarning,
		"information": SeverityInfo,
		"hint":        SeverityHint,
		"3":           SeverityHint,
	}
	for in, want := range tests {
		got, err := ParseSeverity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseSeverity("fatal")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), `"fatal"`)
}

func TestSeverity_Ordering(t *testing.T) {
	assert.True(t, SeverityError.MoreSevereThan(SeverityWarning))
	assert.True(t, SeverityWarning.MoreSevereThan(SeverityInfo))
	assert.True(t, SeverityInfo.MoreSevereThan(SeverityHint))
	assert.False(t, SeverityHint.Valid() && Severity(4).Valid())
}

func TestFinding_Location(t *testing.T) {
	fd := Finding{Path: []string{"paths", "/orders", "get"}}
	assert.Equal(t, "paths./orders.get", fd.Location())
}
