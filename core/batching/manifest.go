package batching

import (
	"bytes"
	"encoding/hex"

	"github.com/jackpal/bencode-go"
	"github.com/liamzebedee/noirbatch-go/core"
	"github.com/liamzebedee/noirbatch-go/core/semaphore"
	"golang.org/x/crypto/sha3"
)

// manifest is the canonical description of a batch request. Bencode has no
// booleans, so flags are 0/1.
type manifest struct {
	Depth  int             `bencode:"depth"`
	Keccak int             `bencode:"keccak"`
	Keys   manifestKeys    `bencode:"keys"`
	Proofs []manifestProof `bencode:"proofs"`
}

type manifestKeys struct {
	Semaphore string `bencode:"semaphore"`
	Leaves    string `bencode:"leaves"`
	Nodes     string `bencode:"nodes"`
}

type manifestProof struct {
	Root      string `bencode:"root"`
	Nullifier string `bencode:"nullifier"`
	Message   string `bencode:"message"`
	Scope     string `bencode:"scope"`
	Proof     string `bencode:"proof"`
}

func keccakHex(data []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func keyDigest(vk []core.Field) string {
	return keccakHex(core.FlattenFields(vk))
}

// BatchID is the keccak256 of the bencoded manifest, so the same proofs
// batched with the same keys and flags always get the same id.
func BatchID(proofs []semaphore.Proof, keys Keys, keccak bool) (string, error) {
	m := manifest{
		Keys: manifestKeys{
			Semaphore: keyDigest(keys.Semaphore),
			Leaves:    keyDigest(keys.Leaves),
			Nodes:     keyDigest(keys.Nodes),
		},
		Proofs: make([]manifestProof, len(proofs)),
	}
	if keccak {
		m.Keccak = 1
	}
	if len(proofs) > 0 {
		m.Depth = proofs[0].MerkleTreeDepth
	}
	for i, p := range proofs {
		m.Proofs[i] = manifestProof{
			Root:      p.MerkleTreeRoot,
			Nullifier: p.Nullifier,
			Message:   p.Message,
			Scope:     p.Scope,
			Proof:     hex.EncodeToString(p.ProofBytes),
		}
	}

	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, m); err != nil {
		return "", err
	}
	return keccakHex(buf.Bytes()), nil
}
