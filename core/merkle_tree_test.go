package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func poseidon2(t *testing.T, a, b Field) Field {
	h, err := HashPoseidon(a, b)
	require.NoError(t, err)
	return h
}

func TestGroupRootPromotesOddNode(t *testing.T) {
	assert := assert.New(t)

	g := NewGroup(NewField(1), NewField(2), NewField(3))
	root, err := g.Root()
	require.NoError(t, err)

	expected := poseidon2(t, poseidon2(t, NewField(1), NewField(2)), NewField(3))
	assert.True(expected.Equal(root))
	assert.Equal(2, g.Depth())
}

func TestGroupEmptyAndSingle(t *testing.T) {
	assert := assert.New(t)

	g := NewGroup()
	root, err := g.Root()
	require.NoError(t, err)
	assert.True(root.IsZero())
	assert.Equal(0, g.Depth())

	g.AddMember(NewField(9))
	root, err = g.Root()
	require.NoError(t, err)
	assert.True(root.Equal(NewField(9)))
}

func TestMerkleProofSkipsMissingSiblings(t *testing.T) {
	assert := assert.New(t)

	g := NewGroup(NewField(1), NewField(2), NewField(3))
	proof, err := g.GenerateMerkleProof(2)
	require.NoError(t, err)

	// Leaf 3 has no sibling at level 0, so only one sibling is recorded.
	assert.Len(proof.Siblings, 1)
	assert.True(proof.Siblings[0].Equal(poseidon2(t, NewField(1), NewField(2))))
	assert.Equal(uint64(1), proof.Index)

	ok, err := proof.Verify()
	require.NoError(t, err)
	assert.True(ok)
}

func TestMerkleProofAllMembers(t *testing.T) {
	assert := assert.New(t)

	g := NewGroup()
	for i := 1; i <= 11; i++ {
		g.AddMember(NewField(uint64(i * 100)))
	}

	for i := 0; i < g.Size(); i++ {
		proof, err := g.GenerateMerkleProof(i)
		require.NoError(t, err)
		ok, err := proof.Verify()
		require.NoError(t, err)
		assert.True(ok, "member %d", i)
		assert.LessOrEqual(len(proof.Siblings), g.Depth())
	}

	_, err := g.GenerateMerkleProof(g.Size())
	assert.Error(err)
}

func TestMerkleProofRejectsTamperedLeaf(t *testing.T) {
	g := NewGroup(NewField(1), NewField(2), NewField(3), NewField(4))
	proof, err := g.GenerateMerkleProof(1)
	require.NoError(t, err)

	proof.Leaf = NewField(5)
	ok, err := proof.Verify()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGroupIndexOf(t *testing.T) {
	g := NewGroup(NewField(1), NewField(2))
	assert.Equal(t, 1, g.IndexOf(NewField(2)))
	assert.Equal(t, -1, g.IndexOf(NewField(3)))
}
