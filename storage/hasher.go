package storage

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Hasher maps a key to a 64-bit hash. Implementations must be deterministic:
// the directory is addressed by the low bits of the result.
type Hasher[K any] func(K) uint64

// Integer is the set of key types IdentityHasher accepts
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// IdentityHasher uses the key's own bits as its hash, so the low bits of the
// key select the directory slot.
func IdentityHasher[K Integer]() Hasher[K] {
	return func(key K) uint64 {
		return uint64(key)
	}
}

// Uint32Hasher mixes a 32-bit key with xxhash
func Uint32Hasher[K ~uint32]() Hasher[K] {
	return func(key K) uint64 {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(key))
		return xxhash.Sum64(buf[:])
	}
}

// Uint64Hasher mixes a 64-bit key with xxhash
func Uint64Hasher[K ~uint64]() Hasher[K] {
	return func(key K) uint64 {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(key))
		return xxhash.Sum64(buf[:])
	}
}

// StringHasher hashes string keys with xxhash
func StringHasher[K ~string]() Hasher[K] {
	return func(key K) uint64 {
		return xxhash.Sum64String(string(key))
	}
}
