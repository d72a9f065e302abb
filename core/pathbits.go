package core

// PathBits holds the left/right direction of every level of a Merkle path.
// Bit i is set when the node at level i is a right child.
//
// The membership circuit takes these as an `index_bits` array with one entry
// per tree level, including levels above the proof length which are zero.
type PathBits struct {
	buf   []byte
	depth int
}

func NewPathBits(depth int) *PathBits {
	return &PathBits{buf: make([]byte, (depth/8)+1), depth: depth}
}

// PathBitsFromIndex decomposes a leaf index into depth direction bits.
func PathBitsFromIndex(index uint64, depth int) *PathBits {
	p := NewPathBits(depth)
	for i := 0; i < depth && i < 64; i++ {
		if (index>>uint(i))&1 == 1 {
			p.Set(i)
		}
	}
	return p
}

func (p *PathBits) Depth() int {
	return p.depth
}

func (p *PathBits) Set(i int) {
	p.buf[i/8] |= 1 << uint(i%8)
}

func (p *PathBits) Clear(i int) {
	p.buf[i/8] &^= 1 << uint(i%8)
}

func (p *PathBits) IsRight(i int) bool {
	return p.buf[i/8]&(1<<uint(i%8)) != 0
}

// Index recomposes the leaf index from the direction bits.
func (p *PathBits) Index() uint64 {
	var index uint64
	for i := 0; i < p.depth && i < 64; i++ {
		if p.IsRight(i) {
			index |= 1 << uint(i)
		}
	}
	return index
}

// Ints renders the bits as the 0/1 array the circuit expects.
func (p *PathBits) Ints() []int {
	out := make([]int, p.depth)
	for i := 0; i < p.depth; i++ {
		if p.IsRight(i) {
			out[i] = 1
		}
	}
	return out
}
