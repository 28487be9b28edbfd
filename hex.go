package msignode

import (
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"
)

// HexBytes is a byte slice that is represented as a lowercase hex string
// when serialized to JSON.
type HexBytes []byte

// MarshalJSON implements json.Marshaler.
func (b HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(b))
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *HexBytes) UnmarshalJSON(src []byte) error {
	var s string
	if err := json.Unmarshal(src, &s); err != nil {
		return errors.Wrap(err, "parse string")
	}
	// and interpret that string as hex
	raw, err := hex.DecodeString(s)
	if err != nil {
		return errors.Wrap(err, "decode hex")
	}
	*b = raw
	return nil
}

// String returns the lowercase hex representation.
func (b HexBytes) String() string {
	return hex.EncodeToString(b)
}
