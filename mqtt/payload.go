package mqtt

import (
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	wiegand "github.com/asjoyner/wiegand-decode"
)

// Encoding selects the MQTT payload format.
type Encoding string

const (
	// EncodingText publishes Credential.String().
	EncodingText Encoding = "text"
	// EncodingCBOR publishes a Payload as a CBOR map.
	EncodingCBOR Encoding = "cbor"
)

// ParseEncoding accepts "text" or "cbor", case-insensitively. An empty
// string selects EncodingText.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(s)) {
	case "", EncodingText:
		return EncodingText, nil
	case EncodingCBOR:
		return EncodingCBOR, nil
	default:
		return "", fmt.Errorf("unknown payload encoding %q", s)
	}
}

// Payload is the CBOR form of a credential.
type Payload struct {
	Format       string `cbor:"format"`
	Bits         int    `cbor:"bits"`
	FacilityCode uint64 `cbor:"facility,omitempty"`
	CardCode     uint64 `cbor:"card,omitempty"`
	UID          uint32 `cbor:"uid,omitempty"`
	Parity       string `cbor:"parity"`
	Raw          []byte `cbor:"raw"`
	ScannedAt    int64  `cbor:"ts"` // Unix milliseconds
}

// NewPayload converts c, read at the given time, to a Payload.
func NewPayload(c wiegand.Credential, at time.Time) Payload {
	return Payload{
		Format:       c.Format.String(),
		Bits:         c.BitCount,
		FacilityCode: c.FacilityCode,
		CardCode:     c.CardCode,
		UID:          c.UID,
		Parity:       c.Parity.String(),
		Raw:          c.Bits,
		ScannedAt:    at.UnixMilli(),
	}
}

// Encode renders c in encoding e.
func (e Encoding) Encode(c wiegand.Credential, at time.Time) ([]byte, error) {
	switch e {
	case EncodingText, "":
		return []byte(c.String()), nil
	case EncodingCBOR:
		return cbor.Marshal(NewPayload(c, at))
	default:
		return nil, fmt.Errorf("unknown payload encoding %q", string(e))
	}
}
