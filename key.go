package dkimsign

import (
	"crypto/rand"
	"crypto/rsa"

	"golang.org/x/crypto/ed25519"
)

// PrivateKey is the tagged signing-key variant of spec.md section 3:
// either an RSA key or an Ed25519 keypair. Avoid growing this into a
// class hierarchy — dispatch on the variant happens only in sign, at
// the single point that needs it (spec.md section 9).
type PrivateKey interface {
	// algo returns the "a=" hash-algorithm tag value this key variant
	// signs with by default.
	algo() string
	// hashAlgo returns the digest algorithm fed to the signing step.
	hashAlgo() HashAlgo
	// sign produces the raw signature bytes over digest.
	sign(digest []byte) ([]byte, error)
}

// RSAKey signs with RSA-PKCS#1v1.5. The default hash is SHA-256;
// legacy SHA-1 is only reachable through ConfigBuilder.AllowRSASHA1, per the
// "RSA-SHA1 accepted only when externally configured" Open Question in
// spec.md section 9.
type RSAKey struct {
	Key *rsa.PrivateKey

	// allowSHA1 is set by ConfigBuilder.Build when AllowRSASHA1 was called. It is
	// unexported: callers opt in through the builder, not by
	// constructing this field directly.
	allowSHA1 bool
}

func (k *RSAKey) algo() string {
	if k.allowSHA1 {
		return "rsa-sha1"
	}
	return "rsa-sha256"
}

func (k *RSAKey) hashAlgo() HashAlgo {
	if k.allowSHA1 {
		return HashSHA1
	}
	return HashSHA256
}

func (k *RSAKey) sign(digest []byte) ([]byte, error) {
	sig, err := rsa.SignPKCS1v15(rand.Reader, k.Key, k.hashAlgo().cryptoHash(), digest)
	if err != nil {
		return nil, &SigningError{Err: err}
	}
	return sig, nil
}

// Ed25519Key signs with PureEdDSA over a SHA-256 digest, per RFC 8463.
// Unlike RSA there is no legacy SHA-1 arm: RFC 8463 defines no
// ed25519-sha1 combination.
type Ed25519Key struct {
	Key ed25519.PrivateKey
}

func (k *Ed25519Key) algo() string {
	return "ed25519-sha256"
}

func (k *Ed25519Key) hashAlgo() HashAlgo {
	return HashSHA256
}

func (k *Ed25519Key) sign(digest []byte) ([]byte, error) {
	if len(k.Key) != ed25519.PrivateKeySize {
		return nil, &SigningError{Err: &KeyError{Msg: "invalid Ed25519 private key size"}}
	}
	// PureEdDSA signs the message as given; the message here is
	// already the 32-byte SHA-256 digest, not the original octets
	// (spec.md section 4.E, step 7).
	return ed25519.Sign(k.Key, digest), nil
}
