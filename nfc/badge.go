package nfc

import (
	"net/url"
	"strings"
)

// NTAG213 memory layout: pages 0x00-0x03 hold tag info, user data starts at
// 0x04 and the last data page is 0x27. One FAST_READ covers the whole NDEF
// message area in a single transaction, which matters because multi-command
// reads can be interrupted by the badge being lifted off the reader.
const (
	FastReadStartPage = 0x04
	FastReadEndPage   = 0x27
)

// FastReadCommand returns the NTAG FAST_READ command frame covering the
// badge's user memory pages. Backends wrap it in their own transport framing.
func FastReadCommand() []byte {
	return []byte{0x3A, FastReadStartPage, FastReadEndPage}
}

// DecodeBadgeIdentifier extracts the user identifier embedded in a badge's
// NDEF message area. The input is the raw bytes read from tag memory, either
// a bare NDEF message or one wrapped in Type 2 TLV blocks.
//
// The message's first record must be a Well Known Text or URI record. For a
// Text record the identifier is the text payload. For a URI record the
// abbreviation prefix byte is stripped and the identifier is taken from the
// remainder: a "user" query parameter when present, otherwise the trailing
// path segment.
//
// Pure function; failures are TagFormatErrors and never reach the network.
func DecodeBadgeIdentifier(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", NewTagFormatError("empty tag memory")
	}

	msg := raw
	if ndef, ok := FindNDEFTLV(raw); ok {
		msg = ndef
	}

	records, err := ParseNDEFMessage(msg)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", NewTagFormatError("no NDEF records")
	}

	rec := &records[0]
	var id string
	switch {
	case rec.IsTextRecord():
		text, ok := rec.Text()
		if !ok {
			return "", NewTagFormatError("unreadable text record payload")
		}
		id = strings.TrimSpace(text)

	case rec.IsURIRecord():
		if len(rec.Payload) < 2 {
			return "", NewTagFormatError("URI record payload too short")
		}
		id = identifierFromURI(string(rec.Payload[1:]))

	default:
		return "", NewTagFormatError("record type is neither Text nor URI (TNF=0x%02x, type=%q)", rec.TNF, rec.Type)
	}

	if id == "" {
		return "", NewTagFormatError("empty identifier")
	}
	return id, nil
}

// identifierFromURI extracts the badge identifier from a URI remainder
// (the URI with its abbreviation prefix already stripped). Badges encode
// either a bare identifier, an identifier as the last path segment, or a
// full URL carrying a user=<id> query parameter.
func identifierFromURI(remainder string) string {
	remainder = strings.TrimSpace(remainder)

	if i := strings.IndexByte(remainder, '?'); i >= 0 {
		if vals, err := url.ParseQuery(remainder[i+1:]); err == nil {
			if user := vals.Get("user"); user != "" {
				return strings.TrimSpace(user)
			}
		}
		remainder = remainder[:i]
	}

	remainder = strings.TrimRight(remainder, "/")
	if i := strings.LastIndexByte(remainder, '/'); i >= 0 {
		remainder = remainder[i+1:]
	}
	return strings.TrimSpace(remainder)
}
