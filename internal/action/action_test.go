package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, Target{Label: 1}.HasLabel())
	assert.False(t, Target{}.HasLabel())
	assert.True(t, Target{Point: &Point{}}.HasPoint())
	assert.False(t, Target{Label: 3}.HasPoint())
}

func TestErrorf(t *testing.T) {
	t.Parallel()

	a := Errorf("bad call %q", "tap()")
	assert.Equal(t, KindError, a.Kind)
	assert.Equal(t, `bad call "tap()"`, a.Value)
}
