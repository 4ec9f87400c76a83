package safety

import (
	"encoding/binary"
	"fmt"
)

// SPL Token mint account layout (82 bytes, little-endian):
//
//	mint_authority_tag (4) | mint_authority (32) | supply (8) | decimals (1) |
//	is_initialized (1) | freeze_authority_tag (4) | freeze_authority (32)
const (
	legacyMintLen             = 82
	legacyMintAuthorityTagOff = 0
	legacyMintSupplyOff       = 36
	legacyMintDecimalsOff     = 44
	legacyFreezeTagOff        = 46
)

type legacyMint struct {
	mintAuthorityNone   bool
	freezeAuthorityNone bool
	supply              uint64
	decimals            uint8
}

func decodeLegacyMint(raw []byte) (*legacyMint, error) {
	if len(raw) < legacyMintLen {
		return nil, fmt.Errorf("mint account too short: %d bytes", len(raw))
	}

	mintAuthorityTag := binary.LittleEndian.Uint32(raw[legacyMintAuthorityTagOff : legacyMintAuthorityTagOff+4])
	freezeAuthorityTag := binary.LittleEndian.Uint32(raw[legacyFreezeTagOff : legacyFreezeTagOff+4])

	return &legacyMint{
		mintAuthorityNone:   mintAuthorityTag == 0,
		freezeAuthorityNone: freezeAuthorityTag == 0,
		supply:              binary.LittleEndian.Uint64(raw[legacyMintSupplyOff : legacyMintSupplyOff+8]),
		decimals:            raw[legacyMintDecimalsOff],
	}, nil
}

// Canonical Token-2022 extension type tags (spl-token-2022 ExtensionType
// enum discriminants) relevant to safety classification. The full set is
// larger; anything not listed here is recorded as an unknown extension
// and never affects DecisionSafe.
const (
	extTransferFeeConfigType        = 1
	extMintCloseAuthorityType       = 3
	extConfidentialTransferMintType = 4
	extDefaultAccountStateType      = 6
	extMemoTransferType             = 8
	extNonTransferableType          = 9
	extPermanentDelegateType        = 12
	extTransferHookType             = 14
)

// token2022Flags is the result of walking a mint's TLV extension records.
type token2022Flags struct {
	nonTransferable    bool
	defaultFrozen      bool
	permanentDelegate  bool
	transferHook       bool
	memoRequired       bool
	confidential       bool
	mintCloseAuthority bool
	transferFeeBps     *uint16
	transferFeeMaxAbs  *uint64
	unknownExtensions  []string
}

// decodeToken2022Extensions walks the TLV records appended directly after
// the legacy 82-byte mint body. Each record is [type u16][length
// u16][value...]; unrecognized types are skipped and recorded, never
// causing a decode failure, since new extension types are added to the
// program over time.
func decodeToken2022Extensions(raw []byte) token2022Flags {
	var flags token2022Flags

	offset := legacyMintLen
	for offset+4 <= len(raw) {
		extType := binary.LittleEndian.Uint16(raw[offset : offset+2])
		extLen := int(binary.LittleEndian.Uint16(raw[offset+2 : offset+4]))
		valueStart := offset + 4
		valueEnd := valueStart + extLen
		if valueEnd > len(raw) {
			break
		}
		value := raw[valueStart:valueEnd]

		switch extType {
		case extTransferFeeConfigType:
			if len(value) >= 2 {
				bps := binary.LittleEndian.Uint16(value[0:2])
				flags.transferFeeBps = &bps
			}
			if len(value) >= 10 {
				maxAbs := binary.LittleEndian.Uint64(value[2:10])
				flags.transferFeeMaxAbs = &maxAbs
			}
		case extMintCloseAuthorityType:
			flags.mintCloseAuthority = true
		case extNonTransferableType:
			flags.nonTransferable = true
		case extDefaultAccountStateType:
			if len(value) >= 1 && value[0] == 2 { // 2 == AccountState::Frozen
				flags.defaultFrozen = true
			}
		case extPermanentDelegateType:
			flags.permanentDelegate = true
		case extTransferHookType:
			flags.transferHook = true
		case extMemoTransferType:
			flags.memoRequired = true
		case extConfidentialTransferMintType:
			flags.confidential = true
		default:
			flags.unknownExtensions = append(flags.unknownExtensions, fmt.Sprintf("ext_%d", extType))
		}

		offset = valueEnd
	}

	return flags
}
