package scenario

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll_Pass(t *testing.T) {
	for _, s := range All() {
		t.Run(s.Name, func(t *testing.T) {
			res := Run(context.Background(), s)
			require.NoError(t, res.Err)
			assert.Equal(t, s.Want, res.Stats)
			assert.True(t, res.Passed)
		})
	}
}

func TestFind(t *testing.T) {
	s, ok := Find("requires-new-inner-failure")
	require.True(t, ok)
	assert.Equal(t, "requires-new-inner-failure", s.Name)

	_, ok = Find("missing")
	assert.False(t, ok)
}
