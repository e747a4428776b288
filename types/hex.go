package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Bytes is a byte slice which is marshaled to text as 0x prefixed hex string.
type Bytes []byte

func (b Bytes) MarshalText() ([]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}
	result := make([]byte, len(b)*2+2)
	copy(result, `0x`)
	hex.Encode(result[2:], b)
	return result, nil
}

func (b *Bytes) UnmarshalText(src []byte) error {
	if len(src) == 0 {
		*b = nil
		return nil
	}
	res, err := hex.DecodeString(strings.TrimPrefix(string(src), "0x"))
	if err != nil {
		return fmt.Errorf("decoding hex string: %w", err)
	}
	*b = res
	return nil
}

func (b Bytes) String() string {
	return fmt.Sprintf("0x%X", []byte(b))
}
