package testkit

import (
	"math/rand"
	"strings"
	"time"
)

// RNG provides a deterministic random number generator.
// If seed is 0, it uses the current time.
func RNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// RandomBytes generates a slice of random bytes of the given length.
func RandomBytes(r *rand.Rand, length int) []byte {
	b := make([]byte, length)
	for i := range b {
		b[i] = byte(r.Intn(256))
	}
	return b
}

// CompressibleBytes generates a slice of highly compressible bytes of the given length.
func CompressibleBytes(r *rand.Rand, length int) []byte {
	b := make([]byte, length)
	pattern := []byte("highly compressible repeating pattern ")
	pLen := len(pattern)
	for i := 0; i < length; i++ {
		b[i] = pattern[i%pLen]
	}

	for i := 0; i < length/1024; i++ {
		b[r.Intn(length)] = byte(r.Intn(256))
	}

	return b
}

// RandomLabel returns a lowercase DNS label of 1 to maxLen characters.
func RandomLabel(r *rand.Rand, maxLen int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789-"
	n := 1 + r.Intn(maxLen)
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(b)
}

// RandomName returns a dotted name of the given number of labels.
func RandomName(r *rand.Rand, labels int) string {
	parts := make([]string, labels)
	for i := range parts {
		parts[i] = RandomLabel(r, 12)
	}
	return strings.Join(parts, ".")
}

// MutateBytes takes a base slice and returns a new slice with random insertions, deletions, or modifications.
func MutateBytes(r *rand.Rand, base []byte, mutations int) []byte {
	out := make([]byte, len(base))
	copy(out, base)

	for i := 0; i < mutations; i++ {
		op := r.Intn(3)
		offset := r.Intn(len(out))

		switch op {
		case 0: // Insert
			val := byte(r.Intn(256))
			out = append(out[:offset], append([]byte{val}, out[offset:]...)...)
		case 1: // Delete
			out = append(out[:offset], out[offset+1:]...)
		case 2: // Modify
			out[offset] = byte(r.Intn(256))
		}
	}
	return out
}
