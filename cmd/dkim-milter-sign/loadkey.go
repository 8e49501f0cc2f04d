package main

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"golang.org/x/crypto/ed25519"

	"github.com/sixpack-mail/dkimsign"
)

// loadPrivateKey mirrors cmd/dkim-sign/loadkey.go: each CLI binary
// owns its own copy, matching the teacher's own cmd/dkim-milter and
// cmd/dkim-keygen each carrying independent key-loading code rather
// than sharing an internal package.
func loadPrivateKey(path string) (dkimsign.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &dkimsign.KeyError{Msg: "reading key file", Err: err}
	}

	block, _ := pem.Decode(b)
	if block == nil {
		return nil, &dkimsign.KeyError{Msg: "no PEM data found in " + path}
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, &dkimsign.KeyError{Msg: "parsing PKCS#1 RSA key", Err: err}
		}
		return &dkimsign.RSAKey{Key: key}, nil
	case "EDDSA PRIVATE KEY":
		if len(block.Bytes) != ed25519.PrivateKeySize {
			return nil, &dkimsign.KeyError{Msg: "invalid Ed25519 private key size"}
		}
		return &dkimsign.Ed25519Key{Key: ed25519.PrivateKey(block.Bytes)}, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, &dkimsign.KeyError{Msg: "parsing PKCS#8 key", Err: err}
		}
		switch key := key.(type) {
		case *rsa.PrivateKey:
			return &dkimsign.RSAKey{Key: key}, nil
		case ed25519.PrivateKey:
			return &dkimsign.Ed25519Key{Key: key}, nil
		default:
			return nil, &dkimsign.KeyError{Msg: fmt.Sprintf("unsupported PKCS#8 key type %T", key)}
		}
	default:
		return nil, &dkimsign.KeyError{Msg: "unknown PEM block type: " + block.Type}
	}
}
