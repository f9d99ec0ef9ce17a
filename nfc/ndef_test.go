package nfc

import (
	"strings"
	"testing"
)

// Round trip of text records through encode and parse
func TestTextRecordEncodeDecode(t *testing.T) {
	tests := []struct {
		text     string
		langCode string
	}{
		{"7dd00021-89fd-49f1-9c17-bd0ba7dcf97e", "en"},
		{"Bonjour", "fr"},
		{"a1b2c", ""},
		{"", ""},
	}

	for _, tt := range tests {
		encoded := EncodeTextRecord(tt.text, tt.langCode)

		records, err := ParseNDEFMessage(encoded)
		if err != nil {
			t.Errorf("failed to parse text=%q langCode=%q: %v", tt.text, tt.langCode, err)
			continue
		}
		if len(records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(records))
		}

		text, ok := records[0].Text()
		if !ok {
			t.Errorf("record for text=%q is not a text record", tt.text)
			continue
		}
		if text != tt.text {
			t.Errorf("text mismatch: got %q, want %q", text, tt.text)
		}
	}
}

func TestURIRecordEncodeDecode(t *testing.T) {
	tests := []struct {
		prefixCode byte
		rest       string
		want       string
	}{
		{0x04, "live.example.com?user=abc", "https://live.example.com?user=abc"},
		{0x03, "example.com/badge/a1b2c", "http://example.com/badge/a1b2c"},
		{0x00, "a1b2c", "a1b2c"},
	}

	for _, tt := range tests {
		encoded := EncodeURIRecord(tt.prefixCode, tt.rest)

		records, err := ParseNDEFMessage(encoded)
		if err != nil {
			t.Fatalf("failed to parse URI record (prefix 0x%02x): %v", tt.prefixCode, err)
		}
		if len(records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(records))
		}

		uri, ok := records[0].URI()
		if !ok {
			t.Fatalf("record is not a URI record")
		}
		if uri != tt.want {
			t.Errorf("URI mismatch: got %q, want %q", uri, tt.want)
		}
	}
}

// A record header that declares more payload than the buffer holds must fail
func TestParseTruncatedPayload(t *testing.T) {
	// D1 = MB|ME|SR, Well Known; declares 10 payload bytes but carries 2
	msg := []byte{0xD1, 0x01, 0x0A, 0x55, 0x04, 'a'}

	_, err := ParseNDEFMessage(msg)
	if err == nil {
		t.Fatal("expected error for truncated payload")
	}
	if !IsTagFormatError(err) {
		t.Errorf("expected TagFormatError, got %T: %v", err, err)
	}
}

func TestParseTruncatedHeader(t *testing.T) {
	cases := [][]byte{
		{},
		{0xD1},
		{0xD1, 0x01},
		{0xD1, 0x01, 0x05},
	}
	for _, msg := range cases {
		if _, err := ParseNDEFMessage(msg); err == nil {
			t.Errorf("expected error for %d-byte buffer", len(msg))
		}
	}
}

// Long records use a 4-byte payload length and clear the SR flag
func TestLongTextRecord(t *testing.T) {
	longText := strings.Repeat("a", 300)
	encoded := EncodeTextRecord(longText, "en")

	if encoded[0]&0x10 != 0 {
		t.Error("long record should not have SR flag set")
	}

	records, err := ParseNDEFMessage(encoded)
	if err != nil {
		t.Fatalf("failed to parse long record: %v", err)
	}
	text, ok := records[0].Text()
	if !ok || text != longText {
		t.Errorf("long record mismatch: length got %d, want %d", len(text), len(longText))
	}
}

func TestParseStopsAtMessageEnd(t *testing.T) {
	encoded := EncodeTextRecord("first", "en")
	// Trailing memory garbage after the ME record must be ignored
	encoded = append(encoded, 0x00, 0x00, 0x00)

	records, err := ParseNDEFMessage(encoded)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestFindNDEFTLV(t *testing.T) {
	msg := EncodeURIRecord(0x04, "example.com?user=abc")

	// Lock control TLV, then the NDEF message TLV, then terminator and padding
	block := []byte{TLVLockCtrl, 0x03, 0xA0, 0x0C, 0x34}
	block = append(block, TLVNDEF, byte(len(msg)))
	block = append(block, msg...)
	block = append(block, TLVTerminator, 0x00, 0x00, 0x00)

	value, ok := FindNDEFTLV(block)
	if !ok {
		t.Fatal("NDEF TLV not found")
	}
	if len(value) != len(msg) {
		t.Fatalf("TLV value length mismatch: got %d, want %d", len(value), len(msg))
	}
}

func TestFindNDEFTLVSkipsNulls(t *testing.T) {
	msg := EncodeTextRecord("abc", "en")
	block := []byte{TLVNull, TLVNull}
	block = append(block, TLVNDEF, byte(len(msg)))
	block = append(block, msg...)
	block = append(block, TLVTerminator)

	if _, ok := FindNDEFTLV(block); !ok {
		t.Fatal("NDEF TLV not found after null TLVs")
	}
}

func TestFindNDEFTLVTruncated(t *testing.T) {
	// Declares a 0x3B byte NDEF message but the block ends early
	block := []byte{TLVNDEF, 0x3B, 0xD1, 0x01}
	if _, ok := FindNDEFTLV(block); ok {
		t.Fatal("expected no NDEF TLV for truncated block")
	}
}

func TestFindNDEFTLVLongLength(t *testing.T) {
	msg := EncodeTextRecord(strings.Repeat("x", 300), "en")
	block := []byte{TLVNDEF, 0xFF, byte(len(msg) >> 8), byte(len(msg) & 0xFF)}
	block = append(block, msg...)
	block = append(block, TLVTerminator)

	value, ok := FindNDEFTLV(block)
	if !ok {
		t.Fatal("NDEF TLV with long length not found")
	}
	if len(value) != len(msg) {
		t.Fatalf("TLV value length mismatch: got %d, want %d", len(value), len(msg))
	}
}
