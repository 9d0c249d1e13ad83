package canon

import (
	"crypto/ed25519"
	"encoding/base64"

	"github.com/faffhub/faff-go/ledgererr"
	"github.com/faffhub/faff-go/model"
)

var identityTopKeys = []string{"version", "name", "public_key", "secret_key"}

// IdentityVersion is the canonical format version written to every key file.
const IdentityVersion = "1.1"

// MarshalIdentity renders an Identity to its canonical text form. The secret
// key, when present, is written alongside the public key in the clear: the
// key file's permission bits (owner read/write only) are the sole
// protection.
func MarshalIdentity(id model.Identity) string {
	b := NewBuilder()
	b.Str("version", IdentityVersion)
	b.Str("name", id.Name)
	b.Str("public_key", base64.StdEncoding.EncodeToString(id.PublicKey))
	if id.HasSecret() {
		b.Str("secret_key", base64.StdEncoding.EncodeToString(id.SecretKey))
	}
	return b.Build()
}

// UnmarshalIdentity parses a canonical Identity text document.
func UnmarshalIdentity(path, text string) (model.Identity, error) {
	doc, err := Parse(path, text)
	if err != nil {
		return model.Identity{}, err
	}
	if err := doc.RequireOnlyTopKeys(path, identityTopKeys...); err != nil {
		return model.Identity{}, err
	}
	name, _ := doc.Top.String("name")
	pubStr, ok := doc.Top.String("public_key")
	if !ok {
		return model.Identity{}, ledgererr.New(ledgererr.FileCorrupt, "missing public_key").At(path, 0)
	}
	pub, err := base64.StdEncoding.DecodeString(pubStr)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return model.Identity{}, ledgererr.New(ledgererr.FileCorrupt, "malformed public_key").At(path, 0)
	}
	id := model.Identity{Name: name, PublicKey: ed25519.PublicKey(pub)}
	if secStr, ok := doc.Top.String("secret_key"); ok {
		sec, err := base64.StdEncoding.DecodeString(secStr)
		if err != nil || len(sec) != ed25519.PrivateKeySize {
			return model.Identity{}, ledgererr.New(ledgererr.FileCorrupt, "malformed secret_key").At(path, 0)
		}
		id.SecretKey = ed25519.PrivateKey(sec)
	}
	return id, nil
}
