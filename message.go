package dkimsign

import (
	"bufio"
	"io"
	"net/textproto"
	"strings"
)

const crlf = "\r\n"

// Field is one header field as it appeared in the original message:
// its parsed name (for case-insensitive selection) and its exact
// original bytes — name, colon, value, and trailing CRLF, continuation
// lines included verbatim. Simple header canonicalization requires
// these raw bytes unmodified (spec.md section 4.A).
type Field struct {
	Name string
	Raw  string
}

// Message is the "parsed email" collaborator of spec.md section 3: an
// ordered header field list with original byte forms, plus the body
// as a contiguous byte range. The core never mutates a Message.
type Message struct {
	Fields []Field
	Body   []byte
}

// Parse reads header fields and a body from r, splitting at the first
// blank line per RFC 5322. This is the minimal "assumed available"
// MIME/5322 parser spec.md section 1 treats as an external
// collaborator: it preserves raw bytes and original casing but does
// not walk a MIME tree. Grounded on the teacher's readHeader/
// writeHeader (header.go): a bufio/textproto line reader, continuation
// lines glued onto the previous field with an embedded CRLF. Every
// header line is stored in Raw ending in CRLF, whether it ended in CRLF
// or a bare LF in r.
func Parse(r io.Reader) (*Message, error) {
	br := bufio.NewReader(r)
	tr := textproto.NewReader(br)

	var fields []Field
	for {
		line, err := tr.ReadLine()
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			break
		}
		if len(fields) > 0 && (line[0] == ' ' || line[0] == '\t') {
			fields[len(fields)-1].Raw += line + crlf
			continue
		}
		fields = append(fields, Field{
			Name: parseFieldName(line),
			Raw:  line + crlf,
		})
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return nil, err
	}

	return &Message{Fields: fields, Body: body}, nil
}

func parseFieldName(raw string) string {
	i := strings.IndexByte(raw, ':')
	if i < 0 {
		return raw
	}
	return strings.TrimSpace(raw[:i])
}
