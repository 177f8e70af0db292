package cache

import (
	"crypto/md5"
	"encoding/hex"
)

// KeySeparator joins the prefix and the identifier digest.
const KeySeparator = ":"

// DeriveKey builds "<prefix>:<md5(identifier) hex>".
//
// The digest is 128 bits and carries no time or random component, so the
// same (prefix, identifier) pair maps to the same entry across processes.
func DeriveKey(prefix, identifier string) string {
	sum := md5.Sum([]byte(identifier))
	return prefix + KeySeparator + hex.EncodeToString(sum[:])
}

// ContentHash returns the hex md5 of raw content, used to build identifiers
// for uploaded files and images.
func ContentHash(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}
