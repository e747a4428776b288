package mt

import (
	"crypto"
)

type (
	// Data is the leaf of the merkle tree.
	Data interface {
		Hash(hashAlgorithm crypto.Hash) []byte
	}

	// ByteHasher is a Data implementation for values which are already hashes.
	ByteHasher []byte
)

func (h ByteHasher) Hash(crypto.Hash) []byte {
	return h
}

/*
EvalRootHash returns the root hash of the plain merkle tree built on top of the
leaves. Leaf order is significant. Empty input yields nil.

Internal node hash is H(0x01 || left || right); a lone right-most node is
promoted to the next level unchanged.
*/
func EvalRootHash[T Data](hashAlgorithm crypto.Hash, leaves []T) []byte {
	if len(leaves) == 0 {
		return nil
	}
	level := make([][]byte, len(leaves))
	for i, l := range leaves {
		level[i] = l.Hash(hashAlgorithm)
	}
	hasher := hashAlgorithm.New()
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			hasher.Reset()
			hasher.Write([]byte{1})
			hasher.Write(level[i])
			hasher.Write(level[i+1])
			next = append(next, hasher.Sum(nil))
		}
		level = next
	}
	return level[0]
}
