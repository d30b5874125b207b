package epanet

import (
	"strings"
	"testing"

	"github.com/aosanya/waterguard/internal/models"
	"github.com/aosanya/waterguard/internal/waterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainINP = `[TITLE]
Trivial chain

[RESERVOIRS]
;ID  Head
M    100

[JUNCTIONS]
;ID  Elev  Demand
B    10    0
H1   5     7
H2   5     5

[PIPES]
;ID  Node1  Node2
P1   M      B
P2   B      H1
P3   B      H2
`

func TestParse_TrivialChain(t *testing.T) {
	res, err := Parse(strings.NewReader(chainINP))
	require.NoError(t, err)
	require.Len(t, res.Nodes, 4)

	byID := map[string]ParsedNode{}
	for _, n := range res.Nodes {
		byID[n.ID] = n
	}

	assert.Equal(t, models.NodeMainline, byID["M"].Role)
	assert.Equal(t, models.NodeJunction, byID["B"].Role)
	assert.Equal(t, models.NodeHousehold, byID["H1"].Role)
	assert.Equal(t, models.NodeHousehold, byID["H2"].Role)

	assert.Equal(t, "M", byID["B"].ParentID)
	assert.Equal(t, "B", byID["H1"].ParentID)
	assert.Equal(t, "B", byID["H2"].ParentID)
	assert.Empty(t, byID["M"].ParentID)
}

func TestParse_JunctionByFanOut(t *testing.T) {
	const inp = `[JUNCTIONS]
M 0 0

[PIPES]
P1 M A
P2 A B
P3 A C
`
	res, err := Parse(strings.NewReader(inp))
	require.NoError(t, err)
	byID := map[string]ParsedNode{}
	for _, n := range res.Nodes {
		byID[n.ID] = n
	}
	// M has no incoming link -> MAINLINE
	assert.Equal(t, models.NodeMainline, byID["M"].Role)
	// A fans out to B and C -> JUNCTION
	assert.Equal(t, models.NodeJunction, byID["A"].Role)
	// B, C are undeclared leaves with no demand -> BRANCH
	assert.Equal(t, models.NodeBranch, byID["B"].Role)
	assert.Equal(t, models.NodeBranch, byID["C"].Role)
}

func TestParse_ParentTieBreakLexicographic(t *testing.T) {
	const inp = `[JUNCTIONS]
M 0 0
A 0 0
X 0 0

[PIPES]
PZ M X
PA A X
`
	res, err := Parse(strings.NewReader(inp))
	require.NoError(t, err)
	byID := map[string]ParsedNode{}
	for _, n := range res.Nodes {
		byID[n.ID] = n
	}
	// X has two incoming links PZ (from M) and PA (from A); PA < PZ
	// lexicographically, so A wins.
	assert.Equal(t, "A", byID["X"].ParentID)
}

func TestParse_MissingRequiredSections(t *testing.T) {
	const inp = `[TITLE]
no sections here
`
	_, err := Parse(strings.NewReader(inp))
	require.Error(t, err)
	assert.Equal(t, waterr.InvalidInput, waterr.KindOf(err))
}

func TestParse_CommentsAndCRLF(t *testing.T) {
	inp := "[JUNCTIONS]\r\n;comment line\r\nM 0 0 ;inline comment\r\n[PIPES]\r\nP1 M X\r\n"
	res, err := Parse(strings.NewReader(inp))
	require.NoError(t, err)
	require.Len(t, res.Nodes, 2)
}

func TestValidateFile(t *testing.T) {
	assert.NoError(t, ValidateFile("network.inp"))
	assert.Error(t, ValidateFile("network.txt"))
}
