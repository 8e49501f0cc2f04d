package dkimsign

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const headerFieldName = "DKIM-Signature"

// tagOrder is the fixed emission order required by spec.md section 3:
// v=1 always first, b= always last, x= present only when an expiry was
// set.
var tagOrder = []string{"v", "a", "d", "s", "c", "bh", "h", "t", "x", "b"}

// dkimHeader accumulates the DKIM-Signature tag/value pairs (component
// C, spec.md section 4.C). It renders two forms from one internal
// representation: the unfolded "for-hash" line used as header-hash
// input, and the folded "for-emit" line written to the outgoing
// message. See the "Header-hash special case" and "Folding vs.
// hashing" design notes in spec.md section 9: the for-hash form is
// never folded, the for-emit form is folded only after "b=" holds the
// real signature.
type dkimHeader struct {
	values map[string]string
}

func newDKIMHeader() *dkimHeader {
	return &dkimHeader{values: make(map[string]string, len(tagOrder))}
}

// addTag sets tag to value. A later call with the same name overwrites
// the previous value in place — this is how the signer injects the
// empty "b=" placeholder and, later, the real signature, without
// disturbing tag order.
func (h *dkimHeader) addTag(name, value string) {
	h.values[name] = value
}

// setSignedHeaders renders the "h=" tag: colon-joined header names,
// lowercased, in the order given, duplicates preserved (the
// duplication is significant — see spec.md section 4.A).
func (h *dkimHeader) setSignedHeaders(names []string) {
	lower := make([]string, len(names))
	for i, n := range names {
		lower[i] = strings.ToLower(n)
	}
	h.addTag("h", strings.Join(lower, ":"))
}

// setTime renders "t=" as decimal Unix seconds, floored.
func (h *dkimHeader) setTime(t time.Time) {
	h.addTag("t", strconv.FormatInt(t.Unix(), 10))
}

// setExpiry renders "x=" as the Unix seconds of t+d. It fails if d is
// not positive, or if t+d would overflow a 32-bit Unix timestamp — the
// year-2038 bounds check the source's expiry computation omitted (see
// DESIGN.md, Open Questions).
func (h *dkimHeader) setExpiry(t time.Time, d time.Duration) error {
	if d <= 0 {
		return &ConfigError{Msg: "expiry duration must be positive"}
	}
	exp := t.Add(d)
	if exp.Unix() > math.MaxInt32 {
		return &ConfigError{Msg: "expiry overflows a 32-bit Unix timestamp"}
	}
	h.addTag("x", strconv.FormatInt(exp.Unix(), 10))
	return nil
}

// unfolded renders the tags in canonical order as a single line, with
// no "DKIM-Signature: " prefix and no trailing CRLF: "v=1; a=...; ...;
// b=...;". This is the for-hash form.
func (h *dkimHeader) unfolded() string {
	var b strings.Builder
	for _, name := range tagOrder {
		v, ok := h.values[name]
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(v)
		b.WriteString(";")
	}
	return b.String()
}

// fold wraps "DKIM-Signature: <unfoldedValue>" so that no physical
// line exceeds 78 columns, each continuation line starting with
// exactly one SP, per spec.md section 6. Grounded on the teacher's
// formatSignature (sign.go): read the whole serialized line in
// fixed-width chunks and join them with "\r\n ". DKIM explicitly
// allows folding whitespace (FWS) inside tag values, including inside
// base64 data (RFC 6376 section 3.2's base64string production), so
// cutting mid-token is legal.
func fold(unfoldedValue string) string {
	full := headerFieldName + ": " + unfoldedValue
	const chunk = 75 // 78 - len("\r\n ")

	var out strings.Builder
	for i := 0; i < len(full); i += chunk {
		if i > 0 {
			out.WriteString("\r\n ")
		}
		end := i + chunk
		if end > len(full) {
			end = len(full)
		}
		out.WriteString(full[i:end])
	}
	return out.String()
}
