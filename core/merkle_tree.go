package core

import (
	"fmt"
)

// MinDepth and MaxDepth bound the tree depths the membership circuits are
// compiled for.
const (
	MinDepth = 1
	MaxDepth = 32
)

// A Group is a lean incremental Merkle tree of identity commitments.
// Parents are Poseidon(left, right). A node without a right sibling is
// promoted to the next level unchanged, so the tree depth is ceil(log2(size))
// rather than a fixed value.
type Group struct {
	leaves []Field
}

func NewGroup(members ...Field) *Group {
	g := &Group{}
	g.leaves = append(g.leaves, members...)
	return g
}

func (g *Group) AddMember(commitment Field) {
	g.leaves = append(g.leaves, commitment)
}

func (g *Group) Size() int {
	return len(g.leaves)
}

func (g *Group) Members() []Field {
	return CloneFields(g.leaves)
}

// IndexOf returns -1 if the commitment is not a member.
func (g *Group) IndexOf(commitment Field) int {
	for i, leaf := range g.leaves {
		if leaf.Equal(commitment) {
			return i
		}
	}
	return -1
}

func (g *Group) Depth() int {
	depth := 0
	for size := 1; size < len(g.leaves); size <<= 1 {
		depth++
	}
	return depth
}

func (g *Group) levels() ([][]Field, error) {
	levels := [][]Field{g.leaves}
	current := g.leaves
	for len(current) > 1 {
		next := make([]Field, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 == len(current) {
				next = append(next, current[i])
				continue
			}
			parent, err := HashPoseidon(current[i], current[i+1])
			if err != nil {
				return nil, err
			}
			next = append(next, parent)
		}
		levels = append(levels, next)
		current = next
	}
	return levels, nil
}

// Root of an empty group is zero.
func (g *Group) Root() (Field, error) {
	if len(g.leaves) == 0 {
		return Field{}, nil
	}
	levels, err := g.levels()
	if err != nil {
		return Field{}, err
	}
	return levels[len(levels)-1][0], nil
}

// MerkleProof proves membership of Leaf under Root. Siblings only include
// levels where a sibling exists, and Index carries one direction bit per
// sibling (bit j set when the path node is the right child at that level).
type MerkleProof struct {
	Root     Field
	Leaf     Field
	Index    uint64
	Siblings []Field
}

func (g *Group) GenerateMerkleProof(index int) (*MerkleProof, error) {
	if index < 0 || index >= len(g.leaves) {
		return nil, fmt.Errorf("leaf index %d out of range for group of size %d", index, len(g.leaves))
	}
	levels, err := g.levels()
	if err != nil {
		return nil, err
	}

	proof := &MerkleProof{
		Root: levels[len(levels)-1][0],
		Leaf: g.leaves[index],
	}

	pos := index
	for level := 0; level < len(levels)-1; level++ {
		isRight := pos&1 == 1
		siblingPos := pos + 1
		if isRight {
			siblingPos = pos - 1
		}
		if siblingPos < len(levels[level]) {
			if isRight {
				proof.Index |= 1 << uint(len(proof.Siblings))
			}
			proof.Siblings = append(proof.Siblings, levels[level][siblingPos])
		}
		pos >>= 1
	}
	return proof, nil
}

// Verify recomputes the root from the leaf and siblings.
func (p *MerkleProof) Verify() (bool, error) {
	node := p.Leaf
	for j, sibling := range p.Siblings {
		var err error
		if (p.Index>>uint(j))&1 == 1 {
			node, err = HashPoseidon(sibling, node)
		} else {
			node, err = HashPoseidon(node, sibling)
		}
		if err != nil {
			return false, err
		}
	}
	return node.Equal(p.Root), nil
}
