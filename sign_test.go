package dkimsign

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/sixpack-mail/dkimsign/canon"
)

// The Joe SixPack / football.example.com fixture is the standard
// RFC 6376 / RFC 8463 sample message, inherited via the corpus this
// package was learned from (emersion/go-msgauth dkim/sign_test.go and
// sign_ed25519_test.go share the same header/body strings and the same
// resulting body hash).
const joeSixPackHeaders = "From: Joe SixPack <joe@football.example.com>\r\n" +
	"To: Suzie Q <suzie@shopping.example.net>\r\n" +
	"Subject: Is dinner ready?\r\n" +
	"Date: Fri, 11 Jul 2003 21:00:37 -0700 (PDT)\r\n" +
	"Message-ID: <20030712040037.46341.5F8J@football.example.com>\r\n"

const joeSixPackBody = "Hi.\r\n" +
	"\r\n" +
	"We lost the game. Are you hungry yet?\r\n" +
	"\r\n" +
	"Joe."

const joeSixPackMail = joeSixPackHeaders + "\r\n" + joeSixPackBody

func TestSignEd25519Vector(t *testing.T) {
	msg, err := Parse(strings.NewReader(joeSixPackMail))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	b, err := NewConfigBuilder().WithSignedHeaders(
		[]string{"From", "To", "Subject", "Date", "Message-ID", "From", "Subject", "Date"},
	)
	if err != nil {
		t.Fatalf("WithSignedHeaders: %v", err)
	}
	cfg, err := b.
		WithPrivateKey(&Ed25519Key{Key: mustTestEd25519Key(t)}).
		WithSelector("brisbane").
		WithSigningDomain("football.example.com").
		WithHeaderCanonicalization(canon.Relaxed).
		WithBodyCanonicalization(canon.Relaxed).
		WithTime(time.Unix(1528637909, 0)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := NewSigner(cfg).Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	unfoldedGot := strings.ReplaceAll(got, "\r\n ", "")
	want := "DKIM-Signature: v=1; a=ed25519-sha256; d=football.example.com; s=brisbane; c=relaxed/relaxed; bh=2jUSOH9NhtVGCQWNr9BrIAPreKQjO6Sn7XIkfJVOzv8=; h=from:to:subject:date:message-id:from:subject:date; t=1528637909; b=wITr2H3sBuBfMsnUwlRTO7Oq/C/jd2vubDm50DrXtMFEBLRiz9GfrgCozcg764+gYqWXV3Snd1ynYh8sJ5BXBg==;"
	if unfoldedGot != want {
		t.Errorf("Sign() unfolded =\n%q\nwant\n%q", unfoldedGot, want)
	}
}

func TestSignRSARoundTrips(t *testing.T) {
	raw := "Subject: subject\r\nFrom: Sven Sauleau <sven@cloudflare.com>\r\n\r\nHello Alice\r\n"
	msg, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	key := mustTestRSAKey(t)
	b, err := NewConfigBuilder().WithSignedHeaders([]string{"From", "Subject"})
	if err != nil {
		t.Fatalf("WithSignedHeaders: %v", err)
	}
	cfg, err := b.
		WithPrivateKey(&RSAKey{Key: key}).
		WithSelector("s20").
		WithSigningDomain("example.com").
		WithTime(time.Unix(1609459201, 0)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := NewSigner(cfg).Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	unfoldedGot := strings.ReplaceAll(got, "\r\n ", "")
	wantPrefix := "DKIM-Signature: v=1; a=rsa-sha256; d=example.com; s=s20; c=simple/simple; bh="
	if !strings.HasPrefix(unfoldedGot, wantPrefix) {
		t.Fatalf("Sign() = %q, want prefix %q", unfoldedGot, wantPrefix)
	}
	if !strings.Contains(unfoldedGot, "h=from:subject;") {
		t.Errorf("Sign() missing h=from:subject; got %q", unfoldedGot)
	}
	if !strings.Contains(unfoldedGot, "t=1609459201;") {
		t.Errorf("Sign() missing t=1609459201; got %q", unfoldedGot)
	}

	verifyEmailRSA(t, &key.PublicKey, msg, cfg, unfoldedGot)
}

// verifyEmailRSA is property 7 (round-trip): re-derive the same
// header-hash input an independent verifier would compute and confirm
// the emitted b= validates against the signer's own public key.
func verifyEmailRSA(t *testing.T, pub *rsa.PublicKey, msg *Message, cfg *Config, unfoldedSig string) {
	t.Helper()

	bIdx := strings.LastIndex(unfoldedSig, "b=")
	sigB64 := strings.TrimSuffix(unfoldedSig[bIdx+2:], ";")
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		t.Fatalf("decoding base64 signature: %v", err)
	}

	h0 := strings.TrimPrefix(unfoldedSig[:bIdx]+"b=;", headerFieldName+": ")

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

	digest := sha256.Sum256([]byte(hashInput.String()))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		t.Errorf("round-trip verification failed: %v", err)
	}
}

func TestSignDeterministic(t *testing.T) {
	msg, err := Parse(strings.NewReader(joeSixPackMail))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := NewConfigBuilder().WithSignedHeaders([]string{"From", "Subject"})
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := b.
		WithPrivateKey(&Ed25519Key{Key: mustTestEd25519Key(t)}).
		WithSelector("brisbane").
		WithSigningDomain("football.example.com").
		WithTime(time.Unix(1528637909, 0)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	s := NewSigner(cfg)
	first, err := s.Sign(msg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Sign(msg)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("Sign is not deterministic: %q != %q", first, second)
	}
}

func TestEmptyBHashesIdenticallyRegardlessOfInjectedValue(t *testing.T) {
	h1 := newDKIMHeader()
	h1.addTag("v", "1")
	h1.addTag("bh", "abc")
	h1.addTag("b", "")

	h2 := newDKIMHeader()
	h2.addTag("v", "1")
	h2.addTag("bh", "abc")
	h2.addTag("b", "should-be-ignored-once-we-reset-it")
	h2.addTag("b", "")

	if h1.unfolded() != h2.unfolded() {
		t.Errorf("empty b= must hash identically regardless of prior injected values: %q != %q", h1.unfolded(), h2.unfolded())
	}
}
