package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/sixpack-mail/dkimsign"
	"github.com/sixpack-mail/dkimsign/canon"
)

var (
	keyPath    string
	selector   string
	domain     string
	headerList string
	canonModes string
	expiry     time.Duration
	allowSHA1  bool
)

func init() {
	flag.StringVar(&keyPath, "k", "", "private key file (PEM)")
	flag.StringVar(&selector, "s", "", "DKIM selector")
	flag.StringVar(&domain, "d", "", "signing domain (SDID)")
	flag.StringVar(&headerList, "h", "From:Subject:Date:To", "colon-separated header field names to sign")
	flag.StringVar(&canonModes, "c", "simple/simple", "header/body canonicalization, e.g. relaxed/relaxed")
	flag.DurationVar(&expiry, "x", 0, "signature expiry, relative to signing time (0 disables)")
	flag.BoolVar(&allowSHA1, "sha1", false, "allow legacy RSA-SHA1 signing")
}

func main() {
	flag.Parse()

	if keyPath == "" || selector == "" || domain == "" {
		log.Fatal("dkim-sign: -k, -s and -d are required")
	}

	key, err := loadPrivateKey(keyPath)
	if err != nil {
		log.Fatalf("dkim-sign: %v", err)
	}

	headerCanon, bodyCanon, err := parseCanonModes(canonModes)
	if err != nil {
		log.Fatalf("dkim-sign: %v", err)
	}

	b, err := dkimsign.NewConfigBuilder().
		WithSignedHeaders(strings.Split(headerList, ":"))
	if err != nil {
		log.Fatalf("dkim-sign: %v", err)
	}
	b = b.
		WithPrivateKey(key).
		WithSelector(selector).
		WithSigningDomain(domain).
		WithHeaderCanonicalization(headerCanon).
		WithBodyCanonicalization(bodyCanon)

	if allowSHA1 {
		b = b.AllowRSASHA1()
	}
	if expiry > 0 {
		b = b.WithExpiry(expiry)
	}

	cfg, err := b.Build()
	if err != nil {
		log.Fatalf("dkim-sign: %v", err)
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Fatalf("dkim-sign: reading message: %v", err)
	}

	msg, err := dkimsign.Parse(bytes.NewReader(raw))
	if err != nil {
		log.Fatalf("dkim-sign: parsing message: %v", err)
	}

	sig, err := dkimsign.NewSigner(cfg).Sign(msg)
	if err != nil {
		log.Fatalf("dkim-sign: signing: %v", err)
	}

	fmt.Fprint(os.Stdout, sig+"\r\n")
	os.Stdout.Write(raw)
}

func parseCanonModes(s string) (header, body canon.Mode, err error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid -c value %q, want hcanon/bcanon", s)
	}
	header, body = canon.Mode(parts[0]), canon.Mode(parts[1])
	if !header.Valid() || !body.Valid() {
		return "", "", fmt.Errorf("invalid -c value %q: modes must be simple or relaxed", s)
	}
	return header, body, nil
}
