package core

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/babyjub"
)

// An Identity is a Semaphore member, represented by its secret scalar on the
// Baby Jubjub curve. The public key is B8 * secret and the commitment stored
// in groups is Poseidon(pub.X, pub.Y).
type Identity struct {
	secret *big.Int
}

func CreateRandomIdentity() (*Identity, error) {
	secret, err := rand.Int(rand.Reader, babyjub.SubOrder)
	if err != nil {
		return nil, err
	}
	if secret.Sign() == 0 {
		secret.SetInt64(1)
	}
	return &Identity{secret: secret}, nil
}

// IdentityFromSecret accepts the secret scalar as a decimal or 0x-hex string.
func IdentityFromSecret(secretStr string) (*Identity, error) {
	secret, ok := parseInteger(secretStr)
	if !ok {
		return nil, fmt.Errorf("invalid identity secret %q", secretStr)
	}
	if secret.Sign() <= 0 || secret.Cmp(babyjub.SubOrder) >= 0 {
		return nil, fmt.Errorf("identity secret must be in [1, %s)", babyjub.SubOrder.String())
	}
	return &Identity{secret: secret}, nil
}

func (id *Identity) SecretScalar() Field {
	f, err := FieldFromBigInt(id.secret)
	if err != nil {
		// The sub-order is below the BN254 modulus.
		panic(err)
	}
	return f
}

func (id *Identity) SecretStr() string {
	return id.secret.String()
}

func (id *Identity) PublicKey() *babyjub.Point {
	return babyjub.NewPoint().Mul(id.secret, babyjub.B8)
}

func (id *Identity) Commitment() (Field, error) {
	pub := id.PublicKey()
	x, err := FieldFromBigInt(pub.X)
	if err != nil {
		return Field{}, err
	}
	y, err := FieldFromBigInt(pub.Y)
	if err != nil {
		return Field{}, err
	}
	return HashPoseidon(x, y)
}

// Nullifier is the value the membership circuit outputs for this identity
// under the given scope: Poseidon(SemaphoreHash(scope), secret).
func (id *Identity) Nullifier(scope *big.Int) (Field, error) {
	hashedScope, err := SemaphoreHash(scope)
	if err != nil {
		return Field{}, err
	}
	return HashPoseidon(hashedScope, id.SecretScalar())
}
