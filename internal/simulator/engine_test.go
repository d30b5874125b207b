package simulator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainINP = `[RESERVOIRS]
M 100

[JUNCTIONS]
B 10 0
H1 5 7
H2 5 5

[PIPES]
P1 M B
P2 B H1
P3 B H2
`

func TestSteadyStateEngine_BaselineAndWithLeak(t *testing.T) {
	eng := NewSteadyStateEngine()
	ctx := context.Background()

	h, err := eng.Load(ctx, []byte(chainINP))
	require.NoError(t, err)
	defer eng.Close(h)

	sensors := []string{"M", "B", "H1", "H2"}
	base, err := eng.Baseline(ctx, h, sensors)
	require.NoError(t, err)

	assert.Equal(t, 12.0, base["B"]) // H1 + H2
	assert.Equal(t, 12.0, base["M"]) // everything flows through M
	assert.Equal(t, 7.0, base["H1"])
	assert.Equal(t, 5.0, base["H2"])

	withLeak, err := eng.WithLeak(ctx, h, "H1", 1.0, sensors)
	require.NoError(t, err)
	assert.Equal(t, 13.0, withLeak["M"])
	assert.Equal(t, 13.0, withLeak["B"])
	assert.Equal(t, 8.0, withLeak["H1"])
	assert.Equal(t, 5.0, withLeak["H2"]) // unaffected, not an ancestor

	// Demand restored after WithLeak returns.
	base2, err := eng.Baseline(ctx, h, sensors)
	require.NoError(t, err)
	assert.Equal(t, base, base2)
}

func TestSteadyStateEngine_WithLeakRestoresOnAllPaths(t *testing.T) {
	eng := NewSteadyStateEngine()
	ctx := context.Background()

	h, err := eng.Load(ctx, []byte(chainINP))
	require.NoError(t, err)
	defer eng.Close(h)

	before := h.demand["H1"]
	_, _ = eng.WithLeak(ctx, h, "H1", 5.0, []string{"H1"})
	assert.Equal(t, before, h.demand["H1"])
}

func TestSteadyStateEngine_LoadInvalidINP(t *testing.T) {
	eng := NewSteadyStateEngine()
	_, err := eng.Load(context.Background(), []byte("garbage with no sections"))
	require.Error(t, err)
}
