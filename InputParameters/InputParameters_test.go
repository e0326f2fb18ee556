package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileParameters_Parse(t *testing.T) {
	ip := NewReconcileParameters()
	require.NoError(t, ip.Parse([]byte(`
Title: Two materials
Ranks: 4
GroupsPerRank: 3
Method: block
FreezeSurface: true
Passes: 2 # Second pass checks idempotence
`)))
	assert.Equal(t, "Two materials", ip.Title)
	assert.Equal(t, 4, ip.Ranks)
	assert.Equal(t, 3, ip.GroupsPerRank)
	assert.Equal(t, "block", ip.Method)
	assert.True(t, ip.FreezeSurface)
	assert.Equal(t, 2, ip.Passes)
	// Untouched values keep their defaults
	assert.Equal(t, "vol", ip.Objective)
	assert.Equal(t, int64(512), ip.MemoryMb)
	ip.Print()

	for _, bad := range []string{
		"Ranks: 0",
		"Method: random",
		"Objective: edges",
		"Passes: -1",
		"Ranks: [1, 2]",
	} {
		assert.Error(t, NewReconcileParameters().Parse([]byte(bad)), bad)
	}
}
