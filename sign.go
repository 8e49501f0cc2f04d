// Package dkimsign creates DKIM signatures, as specified in RFC 6376
// and RFC 8463.
package dkimsign

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/sixpack-mail/dkimsign/canon"
)

// Signer runs the signing pipeline of spec.md section 4.E for a fixed
// Config. It is a pure function of (config, message, clock): no
// mutable state, so the same Signer is safe to call concurrently from
// multiple goroutines (spec.md section 5).
type Signer struct {
	cfg *Config
}

// NewSigner wraps a built Config.
func NewSigner(cfg *Config) *Signer {
	return &Signer{cfg: cfg}
}

// Sign runs the deterministic pipeline — body hash, header skeleton,
// header hash, cryptographic signature, final assembly — and returns
// the complete "DKIM-Signature: ..." header line, folded, with no
// trailing CRLF.
func (s *Signer) Sign(msg *Message) (string, error) {
	cfg := s.cfg
	key := cfg.privateKey
	hashAlgo := key.hashAlgo()

	// Step 1-2: canonicalize the body and hash it.
	canonicalBody := canon.Body(cfg.bodyCanon, msg.Body)
	bh := hashAlgo.bodyHashB64(canonicalBody)

	// Step 3: build the header skeleton (everything but b=).
	h := newDKIMHeader()
	h.addTag("v", "1")
	h.addTag("a", key.algo())
	h.addTag("d", cfg.signingDomain)
	h.addTag("s", cfg.selector)
	h.addTag("c", string(cfg.headerCanon)+"/"+string(cfg.bodyCanon))
	h.addTag("bh", bh)
	h.setSignedHeaders(cfg.signedHeaders)

	signTime := cfg.time
	if !cfg.hasTime {
		signTime = now()
	}
	h.setTime(signTime)

	if cfg.hasExpiry {
		if err := h.setExpiry(signTime, cfg.expiry); err != nil {
			return "", err
		}
	}

	// Step 4: H0, the for-hash skeleton with an empty b=.
	h.addTag("b", "")
	h0 := h.unfolded()

	// Step 5: header-hash input — canonicalized selected headers,
	// followed by the canonicalized DKIM-Signature field (b= empty, no
	// trailing CRLF). A listed name with no unused instance left in the
	// message still appears in h= but adds nothing to the hash input.
	var hashInput strings.Builder
	picker := newHeaderPicker(msg.Fields)
	for _, name := range cfg.signedHeaders {
		raw, ok := picker.pick(name)
		if !ok {
			continue
		}
		hashInput.WriteString(canon.Header(cfg.headerCanon, raw))
	}
	hashInput.WriteString(canonicalizeSigField(cfg.headerCanon, h0))

	// Step 6: hash it.
	digest := hashAlgo.sum([]byte(hashInput.String()))

	// Step 7: sign the digest.
	sig, err := key.sign(digest)
	if err != nil {
		return "", err
	}

	// Step 8-9: set the real b=, render, fold.
	h.addTag("b", base64.StdEncoding.EncodeToString(sig))
	return fold(h.unfolded()), nil
}

// canonicalizeSigField canonicalizes the synthesized DKIM-Signature
// header field ("DKIM-Signature: " + unfoldedValue) the same way any
// other selected header is canonicalized, except the result never
// carries a trailing CRLF (spec.md section 4.A, "DKIM-Signature
// inclusion rule").
func canonicalizeSigField(mode canon.Mode, unfoldedValue string) string {
	raw := headerFieldName + ": " + unfoldedValue
	if mode == canon.Simple {
		return raw
	}
	return strings.TrimSuffix(canon.Header(mode, raw+crlf), crlf)
}

// headerPicker selects, for each requested name, the last-occurring
// unused instance of that header in the message, walking from the
// bottom of the message up and marking instances used as they are
// picked — the "bottom-up, once each" rule of spec.md section 4.A,
// grounded on the teacher's headerPicker (header.go).
type headerPicker struct {
	fields []Field
	picked map[string]int
}

func newHeaderPicker(fields []Field) *headerPicker {
	return &headerPicker{fields: fields, picked: make(map[string]int)}
}

func (p *headerPicker) pick(name string) (string, bool) {
	key := strings.ToLower(name)
	skip := p.picked[key]
	for i := len(p.fields) - 1; i >= 0; i-- {
		if !strings.EqualFold(p.fields[i].Name, key) {
			continue
		}
		if skip == 0 {
			p.picked[key]++
			return p.fields[i].Raw, true
		}
		skip--
	}
	return "", false
}

// now supplies the signing time when the Config carries none (see
// ConfigBuilder.WithTime).
var now = time.Now
