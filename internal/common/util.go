package common

import "crypto/rand"

// GenerateRandByteArray returns n cryptographically random bytes.
// It panics if the system random source fails, which only happens on a
// broken host.
func GenerateRandByteArray(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray overwrites b with zeros. Use it for passwords and keys once
// they are no longer needed. A nil slice is ignored.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
