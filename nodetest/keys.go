// Package nodetest provides fixtures shared by the node tests.
package nodetest

import (
	"encoding/hex"

	"github.com/iov-one/msignode/crypto"
)

// Key returns a deterministic private key. The same n always returns the
// same key.
func Key(n byte) *crypto.PrivateKey {
	seed := make([]byte, 32)
	seed[0] = n
	seed[31] = 0xAB
	return crypto.PrivKeyEd25519FromSeed(seed)
}

// Keys returns count deterministic keys, starting from the given index.
func Keys(start byte, count int) []*crypto.PrivateKey {
	keys := make([]*crypto.PrivateKey, count)
	for i := range keys {
		keys[i] = Key(start + byte(i))
	}
	return keys
}

// HexKey returns the hex encoded public key.
func HexKey(k *crypto.PrivateKey) string {
	return hex.EncodeToString(k.PublicKey())
}

// HexKeys returns the hex encoded public keys.
func HexKeys(keys ...*crypto.PrivateKey) []string {
	res := make([]string, len(keys))
	for i, k := range keys {
		res[i] = HexKey(k)
	}
	return res
}
