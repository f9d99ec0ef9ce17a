package nfc

// TLV types found in Type 2 tag memory.
const (
	TLVNull       = 0x00
	TLVLockCtrl   = 0x01
	TLVMemCtrl    = 0x02
	TLVNDEF       = 0x03
	TLVTerminator = 0xFE
)

// FindNDEFTLV locates the NDEF Message TLV in a block of tag memory and
// returns its value. Null TLVs are skipped, other TLVs stepped over, and
// scanning stops at the terminator. Returns (nil, false) when no complete
// NDEF Message TLV is present.
func FindNDEFTLV(data []byte) ([]byte, bool) {
	offset := 0

	for offset < len(data) {
		tlvType := data[offset]

		switch tlvType {
		case TLVNull:
			offset++
			continue

		case TLVTerminator:
			return nil, false
		}

		length, valueStart, ok := tlvLength(data[offset:])
		if !ok {
			return nil, false
		}
		valueStart += offset

		if valueStart+length > len(data) {
			return nil, false
		}

		if tlvType == TLVNDEF {
			return data[valueStart : valueStart+length], true
		}
		offset = valueStart + length
	}

	return nil, false
}

// tlvLength reads the length field of a TLV starting at data[0] (the type
// byte). It returns the value length and the offset of the value relative
// to the type byte. Both short (1-byte) and long (0xFF + 2 bytes) formats
// are handled.
func tlvLength(data []byte) (length, valueStart int, ok bool) {
	if len(data) < 2 {
		return 0, 0, false
	}
	if data[1] == 0xFF {
		if len(data) < 4 {
			return 0, 0, false
		}
		return int(data[2])<<8 | int(data[3]), 4, true
	}
	return int(data[1]), 2, true
}
