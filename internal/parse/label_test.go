package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"studyhall-backend/internal/scope"
)

func TestScopeLabel(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  scope.Scope
		expectErr bool
	}{
		{name: "Floor and zone with F", raw: "2F-A", expected: scope.New(2, scope.ZoneA)},
		{name: "Compact", raw: "2a", expected: scope.New(2, scope.ZoneA)},
		{name: "Dash only", raw: "5-B", expected: scope.New(5, scope.ZoneB)},
		{name: "Korean floor suffix", raw: "1층 B", expected: scope.New(1, scope.ZoneB)},
		{name: "Zoneless with F", raw: "3F", expected: scope.New(3, scope.ZoneNone)},
		{name: "Bare floor", raw: " 6 ", expected: scope.New(6, scope.ZoneNone)},
		{name: "Unknown zone", raw: "2F-C", expectErr: true},
		{name: "Zero floor", raw: "0F", expectErr: true},
		{name: "No floor", raw: "A", expectErr: true},
		{name: "Empty", raw: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ScopeLabel(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, result)
			}
		})
	}
}

func TestTopicScope(t *testing.T) {
	sc, err := TopicScope("studyhall/sensors/2F-A")
	assert.NoError(t, err)
	assert.Equal(t, scope.New(2, scope.ZoneA), sc)

	sc, err = TopicScope("studyhall/sensors/4/")
	assert.NoError(t, err)
	assert.Equal(t, scope.New(4, scope.ZoneNone), sc)

	_, err = TopicScope("studyhall/sensors/lobby")
	assert.Error(t, err)
}
