package nfc

import "testing"

// wrapTLV builds an NTAG-style memory image around an NDEF message.
func wrapTLV(msg []byte) []byte {
	block := []byte{TLVLockCtrl, 0x03, 0xA0, 0x0C, 0x34}
	block = append(block, TLVNDEF, byte(len(msg)))
	block = append(block, msg...)
	block = append(block, TLVTerminator)
	// NTAG pages after the message read back as zeros
	block = append(block, make([]byte, 16)...)
	return block
}

func TestDecodeBadgeIdentifierURIBare(t *testing.T) {
	// URI record, "https://" abbreviation, payload "a1b2c"
	raw := []byte{0xD1, 0x01, 0x06, 0x55, 0x04, 'a', '1', 'b', '2', 'c'}

	id, err := DecodeBadgeIdentifier(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if id != "a1b2c" {
		t.Errorf("identifier mismatch: got %q, want %q", id, "a1b2c")
	}
}

func TestDecodeBadgeIdentifierURIQueryParam(t *testing.T) {
	uuid := "7dd00021-89fd-49f1-9c17-bd0ba7dcf97e"
	raw := wrapTLV(EncodeURIRecord(0x04, "live.example.com?user="+uuid))

	id, err := DecodeBadgeIdentifier(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if id != uuid {
		t.Errorf("identifier mismatch: got %q, want %q", id, uuid)
	}
}

func TestDecodeBadgeIdentifierURIPathSegment(t *testing.T) {
	raw := wrapTLV(EncodeURIRecord(0x04, "checkin.example.com/badge/a1b2c/"))

	id, err := DecodeBadgeIdentifier(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if id != "a1b2c" {
		t.Errorf("identifier mismatch: got %q, want %q", id, "a1b2c")
	}
}

func TestDecodeBadgeIdentifierText(t *testing.T) {
	raw := wrapTLV(EncodeTextRecord("  cee20520-aef0-4621-af97-0b51c80c0d9c ", "en"))

	id, err := DecodeBadgeIdentifier(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if id != "cee20520-aef0-4621-af97-0b51c80c0d9c" {
		t.Errorf("identifier not trimmed: got %q", id)
	}
}

func TestDecodeBadgeIdentifierRoundTrip(t *testing.T) {
	ids := []string{"a1b2c", "7dd00021-89fd-49f1-9c17-bd0ba7dcf97e", "user-42"}
	for _, want := range ids {
		for _, raw := range [][]byte{
			EncodeTextRecord(want, "en"),
			EncodeURIRecord(0x00, want),
			wrapTLV(EncodeTextRecord(want, "en")),
		} {
			got, err := DecodeBadgeIdentifier(raw)
			if err != nil {
				t.Errorf("decode of %q failed: %v", want, err)
				continue
			}
			if got != want {
				t.Errorf("round trip mismatch: got %q, want %q", got, want)
			}
		}
	}
}

func TestDecodeBadgeIdentifierMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty buffer", nil},
		{"truncated header", []byte{0xD1, 0x01}},
		{"declared length exceeds buffer", []byte{0xD1, 0x01, 0x20, 0x55, 0x04, 'a'}},
		{"unsupported record type", []byte{0xD2, 0x0A, 0x01, 't', 'e', 'x', 't', '/', 'p', 'l', 'a', 'i', 'n', 'x'}},
		{"empty text identifier", EncodeTextRecord("   ", "en")},
		{"empty URI identifier", EncodeURIRecord(0x00, " / ")},
		{"URI payload too short", []byte{0xD1, 0x01, 0x01, 0x55, 0x04}},
	}

	for _, tt := range tests {
		_, err := DecodeBadgeIdentifier(tt.raw)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if !IsTagFormatError(err) {
			t.Errorf("%s: expected TagFormatError, got %T: %v", tt.name, err, err)
		}
	}
}
