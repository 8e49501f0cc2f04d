package dkimsign

import (
	"strings"
	"testing"
	"time"
)

func TestDKIMHeaderTagOrderAndEmptyB(t *testing.T) {
	h := newDKIMHeader()
	h.addTag("v", "1")
	h.addTag("a", "rsa-sha256")
	h.addTag("d", "example.com")
	h.addTag("s", "s20")
	h.addTag("c", "simple/simple")
	h.addTag("bh", "abc=")
	h.setSignedHeaders([]string{"From", "Subject"})
	h.setTime(time.Unix(1609459201, 0).UTC())
	h.addTag("b", "")

	got := h.unfolded()
	want := "v=1; a=rsa-sha256; d=example.com; s=s20; c=simple/simple; bh=abc=; h=from:subject; t=1609459201; b=;"
	if got != want {
		t.Fatalf("unfolded() = %q, want %q", got, want)
	}
}

func TestDKIMHeaderXOmittedWithoutExpiry(t *testing.T) {
	h := newDKIMHeader()
	h.addTag("v", "1")
	h.addTag("b", "sig")
	got := h.unfolded()
	if strings.Contains(got, "x=") {
		t.Errorf("unfolded() = %q, must not contain x= when no expiry was set", got)
	}
}

func TestDKIMHeaderExpiryOrdering(t *testing.T) {
	h := newDKIMHeader()
	h.addTag("v", "1")
	h.addTag("t", "100")
	if err := h.setExpiry(time.Unix(100, 0), time.Hour); err != nil {
		t.Fatalf("setExpiry: %v", err)
	}
	h.addTag("b", "sig")

	got := h.unfolded()
	ti := strings.Index(got, "t=")
	xi := strings.Index(got, "x=")
	bi := strings.Index(got, "b=")
	if !(ti < xi && xi < bi) {
		t.Errorf("unfolded() = %q, want t= before x= before b=", got)
	}
}

func TestDKIMHeaderSetExpiryRejectsNonPositive(t *testing.T) {
	h := newDKIMHeader()
	if err := h.setExpiry(time.Unix(0, 0), 0); err == nil {
		t.Error("setExpiry(0) should fail")
	}
	if err := h.setExpiry(time.Unix(0, 0), -time.Second); err == nil {
		t.Error("setExpiry(negative) should fail")
	}
}

func TestDKIMHeaderSetExpiryRejectsOverflow(t *testing.T) {
	h := newDKIMHeader()
	farFuture := time.Unix(1<<32, 0)
	if err := h.setExpiry(farFuture, time.Hour); err == nil {
		t.Error("setExpiry overflowing int32 should fail")
	}
}

func TestDKIMHeaderDuplicateSignedHeadersPreserved(t *testing.T) {
	h := newDKIMHeader()
	h.setSignedHeaders([]string{"From", "Subject", "From"})
	got := h.unfolded()
	want := "h=from:subject:from;"
	if got != want {
		t.Fatalf("unfolded() = %q, want %q", got, want)
	}
}

func TestFoldWraps(t *testing.T) {
	long := strings.Repeat("a", 200)
	folded := fold("v=1; b=" + long + ";")
	for _, line := range strings.Split(folded, "\r\n") {
		if len(line) > 78 {
			t.Errorf("folded line exceeds 78 columns: %q (%d)", line, len(line))
		}
	}
	for _, line := range strings.Split(folded, "\r\n")[1:] {
		if !strings.HasPrefix(line, " ") {
			t.Errorf("continuation line must start with a single SP: %q", line)
		}
	}
}

func TestFoldUnfoldsBack(t *testing.T) {
	unfoldedValue := "v=1; a=rsa-sha256; d=example.com; s=s20; c=simple/simple; bh=" + strings.Repeat("x", 44) + "; h=from:subject; t=1609459201; b=" + strings.Repeat("y", 344) + ";"
	folded := fold(unfoldedValue)

	recovered := strings.ReplaceAll(folded, "\r\n ", "")
	want := headerFieldName + ": " + unfoldedValue
	if recovered != want {
		t.Errorf("folding did not round-trip: got %q, want %q", recovered, want)
	}
}
