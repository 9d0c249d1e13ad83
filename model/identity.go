package model

import "crypto/ed25519"

// Identity is a named ed25519 keypair.
type Identity struct {
	Name      string
	PublicKey ed25519.PublicKey
	SecretKey ed25519.PrivateKey // nil if only the public half is known
}

// HasSecret reports whether the private half is available to sign with.
func (i Identity) HasSecret() bool { return len(i.SecretKey) == ed25519.PrivateKeySize }
