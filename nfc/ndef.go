package nfc

import (
	"encoding/binary"
)

// NDEFRecord is a single record within an NDEF message.
type NDEFRecord struct {
	TNF     byte   // Type Name Format (0x00-0x07)
	Type    []byte // Record type (e.g., "T" for text, "U" for URI)
	ID      []byte // Optional record ID
	Payload []byte // Record payload data
}

// IsTextRecord returns true for a Well Known Text Record (TNF=0x01, Type='T').
func (r *NDEFRecord) IsTextRecord() bool {
	return r.TNF == 0x01 && len(r.Type) == 1 && r.Type[0] == 'T'
}

// IsURIRecord returns true for a Well Known URI Record (TNF=0x01, Type='U').
func (r *NDEFRecord) IsURIRecord() bool {
	return r.TNF == 0x01 && len(r.Type) == 1 && r.Type[0] == 'U'
}

// Text extracts the text from a Text Record payload, skipping the status
// byte and language code. Returns ("", false) for non-text records.
func (r *NDEFRecord) Text() (string, bool) {
	if !r.IsTextRecord() || len(r.Payload) < 1 {
		return "", false
	}
	langLength := int(r.Payload[0] & 0x3F)
	textStart := 1 + langLength
	if textStart > len(r.Payload) {
		return "", false
	}
	return string(r.Payload[textStart:]), true
}

// URI extracts the full URI from a URI Record payload, expanding the
// well-known abbreviation prefix byte. Returns ("", false) for non-URI records.
func (r *NDEFRecord) URI() (string, bool) {
	if !r.IsURIRecord() || len(r.Payload) < 1 {
		return "", false
	}
	return uriPrefix(r.Payload[0]) + string(r.Payload[1:]), true
}

// ParseNDEFMessage parses raw NDEF message bytes into records.
// The buffer must start at the first record header (no TLV wrapper).
func ParseNDEFMessage(msg []byte) ([]NDEFRecord, error) {
	if len(msg) == 0 {
		return nil, NewTagFormatError("empty NDEF message")
	}

	var records []NDEFRecord
	offset := 0

	for offset < len(msg) {
		header := msg[offset]
		me := (header & 0x40) != 0 // Message End
		sr := (header & 0x10) != 0 // Short Record
		il := (header & 0x08) != 0 // ID Length present
		tnf := header & 0x07

		pos := offset + 1
		if pos >= len(msg) {
			return nil, NewTagFormatError("truncated record header at offset %d", offset)
		}
		typeLength := int(msg[pos])
		pos++

		var payloadLength int
		if sr {
			if pos >= len(msg) {
				return nil, NewTagFormatError("truncated payload length at offset %d", pos)
			}
			payloadLength = int(msg[pos])
			pos++
		} else {
			if pos+4 > len(msg) {
				return nil, NewTagFormatError("truncated payload length at offset %d", pos)
			}
			payloadLength = int(binary.BigEndian.Uint32(msg[pos : pos+4]))
			pos += 4
		}

		var idLength int
		if il {
			if pos >= len(msg) {
				return nil, NewTagFormatError("truncated ID length at offset %d", pos)
			}
			idLength = int(msg[pos])
			pos++
		}

		if pos+typeLength > len(msg) {
			return nil, NewTagFormatError("declared type length %d exceeds buffer", typeLength)
		}
		recordType := append([]byte(nil), msg[pos:pos+typeLength]...)
		pos += typeLength

		var recordID []byte
		if idLength > 0 {
			if pos+idLength > len(msg) {
				return nil, NewTagFormatError("declared ID length %d exceeds buffer", idLength)
			}
			recordID = append([]byte(nil), msg[pos:pos+idLength]...)
			pos += idLength
		}

		if pos+payloadLength > len(msg) {
			return nil, NewTagFormatError("declared payload length %d exceeds buffer", payloadLength)
		}
		payload := append([]byte(nil), msg[pos:pos+payloadLength]...)
		pos += payloadLength

		records = append(records, NDEFRecord{
			TNF:     tnf,
			Type:    recordType,
			ID:      recordID,
			Payload: payload,
		})

		offset = pos
		if me {
			break
		}
	}

	return records, nil
}

// EncodeTextRecord builds a single-record NDEF message with a Text Record.
func EncodeTextRecord(text, langCode string) []byte {
	if langCode == "" {
		langCode = "en"
	}
	lang := []byte(langCode)
	if len(lang) > 0x3F {
		lang = lang[:0x3F]
	}
	payload := make([]byte, 1+len(lang)+len(text))
	payload[0] = byte(len(lang)) // UTF-8, status bit 7 clear
	copy(payload[1:], lang)
	copy(payload[1+len(lang):], text)
	return encodeSingleRecord('T', payload)
}

// EncodeURIRecord builds a single-record NDEF message with a URI Record.
// The prefixCode is one of the well-known abbreviation identifiers
// (0x00 for none, 0x04 for "https://", ...).
func EncodeURIRecord(prefixCode byte, rest string) []byte {
	payload := make([]byte, 1+len(rest))
	payload[0] = prefixCode
	copy(payload[1:], rest)
	return encodeSingleRecord('U', payload)
}

func encodeSingleRecord(recordType byte, payload []byte) []byte {
	short := len(payload) <= 255

	header := byte(0x01) // TNF = Well Known
	header |= 1 << 7     // MB
	header |= 1 << 6     // ME
	if short {
		header |= 1 << 4 // SR
	}

	var msg []byte
	if short {
		msg = make([]byte, 4+len(payload))
		msg[0] = header
		msg[1] = 1 // type length
		msg[2] = byte(len(payload))
		msg[3] = recordType
		copy(msg[4:], payload)
	} else {
		msg = make([]byte, 7+len(payload))
		msg[0] = header
		msg[1] = 1
		binary.BigEndian.PutUint32(msg[2:6], uint32(len(payload)))
		msg[6] = recordType
		copy(msg[7:], payload)
	}
	return msg
}

// uriPrefix expands a URI Record abbreviation identifier per the NFC Forum
// URI RTD. Unknown identifiers expand to nothing.
func uriPrefix(identifier byte) string {
	switch identifier {
	case 0x01:
		return "http://www."
	case 0x02:
		return "https://www."
	case 0x03:
		return "http://"
	case 0x04:
		return "https://"
	case 0x05:
		return "tel:"
	case 0x06:
		return "mailto:"
	case 0x07:
		return "ftp://anonymous:anonymous@"
	case 0x08:
		return "ftp://ftp."
	case 0x09:
		return "ftps://"
	case 0x0A:
		return "sftp://"
	case 0x0B:
		return "smb://"
	case 0x0C:
		return "nfs://"
	case 0x0D:
		return "ftp://"
	case 0x0E:
		return "dav://"
	case 0x0F:
		return "news:"
	case 0x10:
		return "telnet://"
	case 0x11:
		return "imap:"
	case 0x12:
		return "rtsp://"
	case 0x13:
		return "urn:"
	case 0x14:
		return "pop:"
	case 0x15:
		return "sip:"
	case 0x16:
		return "sips:"
	case 0x17:
		return "tftp:"
	default:
		return ""
	}
}
