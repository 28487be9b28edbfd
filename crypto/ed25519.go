package crypto

import (
	"crypto/sha256"

	"github.com/iov-one/msignode"
	"golang.org/x/crypto/ed25519"
)

// Ed25519Verifier checks ed25519 signatures created over the sha256 digest
// of the transaction sign bytes.
type Ed25519Verifier struct{}

var _ msignode.Verifier = Ed25519Verifier{}

// Verify verifies the signature was created for this transaction with the
// private key matching the given public key.
func (Ed25519Verifier) Verify(tx *msignode.Transaction, publicKey []byte, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), SignDigest(tx), signature)
}

// SignDigest returns the message that is signed for the transaction.
func SignDigest(tx *msignode.Transaction) []byte {
	sum := sha256.Sum256(tx.SignBytes())
	return sum[:]
}

// PrivateKey is an ed25519 signing key.
type PrivateKey struct {
	key ed25519.PrivateKey
}

// GenPrivKeyEd25519 returns a random new private key.
func GenPrivKeyEd25519() *PrivateKey {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		panic(err)
	}
	return &PrivateKey{key: priv}
}

// PrivKeyEd25519FromSeed will deterministically generate a private key from
// a given seed. Use if you have a strong source of external randomness,
// or for deterministic keys in test cases.
func PrivKeyEd25519FromSeed(seed []byte) *PrivateKey {
	return &PrivateKey{key: ed25519.NewKeyFromSeed(seed)}
}

// PublicKey returns the raw public key.
func (p *PrivateKey) PublicKey() msignode.HexBytes {
	return msignode.HexBytes(p.key.Public().(ed25519.PublicKey))
}

// Sign returns the signature of the given transaction.
func (p *PrivateKey) Sign(tx *msignode.Transaction) msignode.HexBytes {
	return ed25519.Sign(p.key, SignDigest(tx))
}
