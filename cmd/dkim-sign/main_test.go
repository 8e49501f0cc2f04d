package main

import "testing"

func TestParseCanonModes(t *testing.T) {
	h, b, err := parseCanonModes("relaxed/simple")
	if err != nil {
		t.Fatalf("parseCanonModes: %v", err)
	}
	if h.String() != "relaxed" || b.String() != "simple" {
		t.Errorf("got %v/%v, want relaxed/simple", h, b)
	}
}

func TestParseCanonModesRejectsGarbage(t *testing.T) {
	if _, _, err := parseCanonModes("nonsense"); err == nil {
		t.Error("expected an error for a value with no slash")
	}
	if _, _, err := parseCanonModes("weird/simple"); err == nil {
		t.Error("expected an error for an invalid mode name")
	}
}
