package dkimsign

import (
	"strings"
	"time"

	"github.com/sixpack-mail/dkimsign/canon"
)

// Config is an immutable SigningConfig (spec.md section 3), produced
// by ConfigBuilder.Build. It carries no mutable state after
// construction, so a Signer built from it is safe to reuse
// concurrently (spec.md section 5).
type Config struct {
	signedHeaders []string
	privateKey    PrivateKey
	selector      string
	signingDomain string

	headerCanon canon.Mode
	bodyCanon   canon.Mode

	expiry    time.Duration
	hasExpiry bool

	time    time.Time
	hasTime bool

	allowRSASHA1 bool
}

// ConfigBuilder implements the "immutable construction pattern with
// explicit setter operations and a terminal build()" of spec.md
// section 9, grounded on the original source's SignerBuilder: each
// With* method mutates the builder in place and returns it, so calls
// chain, and Build performs all validation at once.
type ConfigBuilder struct {
	cfg Config
}

// NewConfigBuilder starts a builder with Simple/Simple canonicalization,
// the spec.md section 3 default.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{cfg: Config{
		headerCanon: canon.Simple,
		bodyCanon:   canon.Simple,
	}}
}

// WithSignedHeaders sets the ordered list of header names to sign.
// "From" (case-insensitive) is mandatory and checked here — at header
// registration, not at Build — per spec.md section 4.D.
func (b *ConfigBuilder) WithSignedHeaders(headers []string) (*ConfigBuilder, error) {
	hasFrom := false
	for _, h := range headers {
		if strings.EqualFold(h, "from") {
			hasFrom = true
			break
		}
	}
	if !hasFrom {
		return b, &ConfigError{Msg: "the From header field must be in signed headers"}
	}
	b.cfg.signedHeaders = append([]string(nil), headers...)
	return b, nil
}

// WithPrivateKey sets the signing key. The hash algorithm (spec.md
// section 3, hash_algo) is derived from its variant: RSA selects
// rsa-sha256 (or rsa-sha1 if AllowRSASHA1 was called), Ed25519 selects
// ed25519-sha256.
func (b *ConfigBuilder) WithPrivateKey(key PrivateKey) *ConfigBuilder {
	b.cfg.privateKey = key
	return b
}

// AllowRSASHA1 opts into legacy RSA-SHA1 signing. It has no effect on
// an Ed25519 key. This is the "externally configured" escape hatch
// spec.md section 9 requires: the default builder never selects
// SHA-1.
func (b *ConfigBuilder) AllowRSASHA1() *ConfigBuilder {
	b.cfg.allowRSASHA1 = true
	return b
}

// WithSelector sets the DNS selector.
func (b *ConfigBuilder) WithSelector(selector string) *ConfigBuilder {
	b.cfg.selector = selector
	return b
}

// WithSigningDomain sets the SDID.
func (b *ConfigBuilder) WithSigningDomain(domain string) *ConfigBuilder {
	b.cfg.signingDomain = domain
	return b
}

// WithHeaderCanonicalization overrides the header canonicalization
// mode (default Simple).
func (b *ConfigBuilder) WithHeaderCanonicalization(mode canon.Mode) *ConfigBuilder {
	b.cfg.headerCanon = mode
	return b
}

// WithBodyCanonicalization overrides the body canonicalization mode
// (default Simple).
func (b *ConfigBuilder) WithBodyCanonicalization(mode canon.Mode) *ConfigBuilder {
	b.cfg.bodyCanon = mode
	return b
}

// WithTime pins the signing timestamp. Used as a test hook; when
// unset, Sign uses the wall clock.
func (b *ConfigBuilder) WithTime(t time.Time) *ConfigBuilder {
	b.cfg.time = t
	b.cfg.hasTime = true
	return b
}

// WithExpiry sets a positive signature validity duration. Build rejects
// a non-positive duration; whether the signing time plus the duration
// overflows a 32-bit Unix timestamp is checked by Sign.
func (b *ConfigBuilder) WithExpiry(d time.Duration) *ConfigBuilder {
	b.cfg.expiry = d
	b.cfg.hasExpiry = true
	return b
}

// Build validates the accumulated configuration and returns an
// immutable Config, or a *ConfigError / *UnsupportedAlgorithmError.
func (b *ConfigBuilder) Build() (*Config, error) {
	if b.cfg.privateKey == nil {
		return nil, &ConfigError{Msg: "missing required private key"}
	}
	if b.cfg.selector == "" {
		return nil, &ConfigError{Msg: "missing required selector"}
	}
	if b.cfg.signingDomain == "" {
		return nil, &ConfigError{Msg: "missing required signing domain"}
	}
	if len(b.cfg.signedHeaders) == 0 {
		return nil, &ConfigError{Msg: "missing required signed headers"}
	}
	if !b.cfg.headerCanon.Valid() {
		return nil, &ConfigError{Msg: "invalid header canonicalization"}
	}
	if !b.cfg.bodyCanon.Valid() {
		return nil, &ConfigError{Msg: "invalid body canonicalization"}
	}
	if b.cfg.hasExpiry && b.cfg.expiry <= 0 {
		return nil, &ConfigError{Msg: "expiry duration must be positive"}
	}

	cfg := b.cfg
	switch key := b.cfg.privateKey.(type) {
	case *RSAKey:
		cfg.privateKey = &RSAKey{Key: key.Key, allowSHA1: b.cfg.allowRSASHA1}
	case *Ed25519Key:
		// no legacy hash arm to gate
	default:
		return nil, &UnsupportedAlgorithmError{Msg: "unknown private key variant"}
	}

	return &cfg, nil
}
