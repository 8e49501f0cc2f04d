// Package canon implements the header and body canonicalization
// algorithms of RFC 6376 section 3.4: Simple and Relaxed. Both are pure
// transforms from input bytes to canonical bytes, with no hidden state,
// so that canonical idempotence (applying a mode twice equals applying
// it once) holds by construction.
package canon

import (
	"regexp"
	"strings"
)

// Mode selects a canonicalization algorithm. It is used independently
// for headers and for the body, per RFC 6376 section 3.4.
type Mode string

const (
	Simple  Mode = "simple"
	Relaxed Mode = "relaxed"
)

const crlf = "\r\n"

// Valid reports whether m is a known canonicalization mode.
func (m Mode) Valid() bool {
	return m == Simple || m == Relaxed
}

func (m Mode) String() string {
	return string(m)
}

var rxReduceWS = regexp.MustCompile(`[ \t]+`)

// Header canonicalizes a single header field, given as "Name: value"
// including its trailing CRLF (or without one, for the synthesized
// DKIM-Signature field used as hash input — see Header-hash special
// case in spec.md section 4.A). Simple returns raw verbatim, so the
// result ends in CRLF only if raw does; Relaxed builds the result fresh
// and always ends it in CRLF, and callers that need the "no trailing
// CRLF" form for hashing trim it themselves.
func Header(mode Mode, raw string) string {
	if mode == Simple {
		return raw
	}
	return relaxedHeader(raw)
}

func relaxedHeader(raw string) string {
	kv := strings.SplitN(raw, ":", 2)
	name := strings.ToLower(strings.TrimSpace(kv[0]))

	var value string
	if len(kv) > 1 {
		value = kv[1]
	}

	// Unfold: CRLF followed by WSP becomes a single SP.
	value = strings.ReplaceAll(value, "\r\n", "")

	value = rxReduceWS.ReplaceAllString(value, " ")
	value = strings.TrimLeft(value, " \t")
	value = strings.TrimRight(value, " \t\r\n")

	return name + ":" + value + crlf
}

// Body canonicalizes an entire message body per RFC 6376 section
// 3.4.3/3.4.4. It operates on the whole body at once: the Email data
// model hands the core a contiguous body byte range (spec.md section
// 3), so there is no need for the streaming io.Writer chain a
// line-oriented MTA pipeline would use.
func Body(mode Mode, body []byte) []byte {
	if mode == Relaxed {
		body = relaxBodyWhitespace(body)
	}
	return trimTrailingEmptyLines(body)
}

// relaxBodyWhitespace reduces WSP runs within a line to a single SP and
// strips trailing WSP before each line's CRLF (RFC 6376 3.4.4, steps 3-4).
func relaxBodyWhitespace(body []byte) []byte {
	lines := splitLines(body)
	out := make([]byte, 0, len(body))
	for _, line := range lines {
		line = rxReduceWS.ReplaceAll(line, []byte(" "))
		line = []byte(strings.TrimRight(string(line), " \t"))
		out = append(out, line...)
		out = append(out, '\r', '\n')
	}
	return out
}

// splitLines splits on CRLF, dropping the final empty element produced
// by a body that ends in CRLF (the canonicalizer re-adds terminators
// per line, so a dangling empty final line would otherwise double up).
func splitLines(body []byte) [][]byte {
	s := string(body)
	s = strings.TrimSuffix(s, crlf)
	if s == "" && len(body) == 0 {
		return nil
	}
	parts := strings.Split(s, crlf)
	lines := make([][]byte, len(parts))
	for i, p := range parts {
		lines[i] = []byte(p)
	}
	return lines
}

// trimTrailingEmptyLines implements the Simple-mode rule shared by
// both canonicalization modes: remove all trailing empty lines at the
// end of the body. An empty body, or a body of only empty lines,
// canonicalizes to a single CRLF; otherwise the result ends in exactly
// one CRLF.
func trimTrailingEmptyLines(body []byte) []byte {
	if len(body) == 0 {
		return []byte(crlf)
	}

	s := string(body)
	s = strings.TrimSuffix(s, crlf)
	lines := strings.Split(s, crlf)
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return []byte(crlf)
	}
	return []byte(strings.Join(lines, crlf) + crlf)
}
