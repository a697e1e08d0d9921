package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

const HASH_BYTE_LEN = 32

type Hash [HASH_BYTE_LEN]uint8

func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HASH_BYTE_LEN {
		return h, fmt.Errorf("given byte slice len %d but must be %d", len(b), HASH_BYTE_LEN)
	}
	copy(h[:], b)
	return h, nil
}

func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, err
	}
	return HashFromBytes(b)
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) ToSlice() []byte {
	out := make([]byte, HASH_BYTE_LEN)
	copy(out, h[:])
	return out
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashProgram identifies a search: the program cells, the topology name,
// the phase settings and the initial input, each length prefixed so
// distinct inputs never collide. Memory options are not part of the key;
// they only decide whether a search faults, and faulted searches are not
// stored.
func HashProgram(program []int64, topology string, phases []int64, initial int64) Hash {
	hasher := blake3.New()
	var buf [8]byte

	writeInts := func(vals []int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(vals)))
		hasher.Write(buf[:])
		for _, v := range vals {
			binary.LittleEndian.PutUint64(buf[:], uint64(v))
			hasher.Write(buf[:])
		}
	}

	writeInts(program)
	binary.LittleEndian.PutUint64(buf[:], uint64(len(topology)))
	hasher.Write(buf[:])
	hasher.Write([]byte(topology))
	writeInts(phases)
	writeInts([]int64{initial})

	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h
}
