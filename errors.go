package dkimsign

import "fmt"

// ConfigError reports a problem with a SigningConfig: a missing
// required field, a From header omitted from the signed header list,
// or a non-positive/overflowing expiry.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "dkimsign: " + e.Msg
}

// UnsupportedAlgorithmError reports a private key for which no
// hash/key pairing is available. ConfigBuilder.Build returns it when
// the key is neither an *RSAKey nor an *Ed25519Key. An RSA key without
// AllowRSASHA1 is not an error: it signs with rsa-sha256.
type UnsupportedAlgorithmError struct {
	Msg string
}

func (e *UnsupportedAlgorithmError) Error() string {
	return "dkimsign: unsupported algorithm: " + e.Msg
}

// SigningError wraps a failure from the underlying signing step:
// rsa.SignPKCS1v15 returned an error (corrupt key, modulus too small
// for the chosen digest, etc), or an Ed25519 key has the wrong size.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("dkimsign: signing failed: %v", e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// KeyError reports a problem decoding or loading key material. The
// core never decodes keys itself (key format parsing is an external
// collaborator per spec.md section 1); this type exists so that a
// caller's key-loading code — such as this repository's own
// cmd/dkim-sign/loadkey.go — can report failures through the same
// error taxonomy the core uses, distinguishable via errors.As from
// ConfigError/SigningError.
type KeyError struct {
	Msg string
	Err error
}

func (e *KeyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dkimsign: key error: %s: %v", e.Msg, e.Err)
	}
	return "dkimsign: key error: " + e.Msg
}

func (e *KeyError) Unwrap() error {
	return e.Err
}
