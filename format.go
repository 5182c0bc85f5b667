package wiegand

import (
	"fmt"
	"math/bits"
)

// Format identifies the card-data layout a frame was decoded with.
type Format int

const (
	FormatUnknown Format = iota
	Format26             // 26-bit, 24-bit card code and no site code
	Format26Site         // 26-bit H10301, 8-bit facility and 16-bit card code
	Format35             // 35-bit HID Corporate 1000
	Format37             // 37-bit H10304
	Format32UID          // 32-bit raw UID (NFCID1)
)

func (f Format) String() string {
	switch f {
	case Format26:
		return "26-bit"
	case Format26Site:
		return "26-bit site code"
	case Format35:
		return "35-bit Corporate 1000"
	case Format37:
		return "37-bit H10304"
	case Format32UID:
		return "32-bit UID"
	default:
		return "unknown"
	}
}

// Parity is the outcome of checking a frame's parity bits. It is
// informational only; frames with bad parity are still decoded.
type Parity int

const (
	ParityUnchecked Parity = iota
	ParityOK
	ParityBad
)

func (p Parity) String() string {
	switch p {
	case ParityOK:
		return "ok"
	case ParityBad:
		return "bad"
	default:
		return "unchecked"
	}
}

// Credential is a decoded frame. Which fields are meaningful depends on
// Format: FacilityCode for the site-code, 35- and 37-bit layouts, CardCode
// for every layout except 32-bit UID, and UID for Format32UID only.
type Credential struct {
	Format       Format
	BitCount     int
	FacilityCode uint64
	CardCode     uint64
	UID          uint32
	Parity       Parity
	Bits         []byte
}

func (c Credential) String() string {
	switch c.Format {
	case Format26:
		return fmt.Sprintf("%s: card=%d parity=%s", c.Format, c.CardCode, c.Parity)
	case Format26Site, Format35, Format37:
		return fmt.Sprintf("%s: facility=%d card=%d parity=%s", c.Format, c.FacilityCode, c.CardCode, c.Parity)
	case Format32UID:
		return fmt.Sprintf("%s: uid=%08x", c.Format, c.UID)
	default:
		return fmt.Sprintf("unknown %d-bit frame", c.BitCount)
	}
}

// span is a half-open range [start, end) of bit indexes.
type span struct{ start, end int }

// rule decodes frames of one length. anyMode rules match regardless of the
// site-code flag; the others only match when siteCode equals the flag.
type rule struct {
	length   int
	anyMode  bool
	siteCode bool
	decode   func(bits []byte) Credential
}

var rules = []rule{
	{length: 26, siteCode: false, decode: decode26},
	{length: 26, siteCode: true, decode: decode26Site},
	{length: 35, anyMode: true, decode: decode35},
	{length: 37, anyMode: true, decode: decode37},
	{length: 32, anyMode: true, decode: decode32UID},
}

// Decode interprets a completed frame. Frames are dispatched by length; the
// 26-bit layout is ambiguous and siteCode picks between a 24-bit card code
// and an 8-bit facility with a 16-bit card code. Lengths with no rule
// decode as FormatUnknown. Any non-zero element is a 1 bit.
func Decode(bits []byte, siteCode bool) Credential {
	var c Credential
	if r, ok := lookup(len(bits), siteCode); ok {
		c = r.decode(bits)
	} else {
		c.Format = FormatUnknown
	}
	c.BitCount = len(bits)
	c.Bits = make([]byte, len(bits))
	for i, b := range bits {
		if b != 0 {
			c.Bits[i] = 1
		}
	}
	return c
}

func lookup(length int, siteCode bool) (rule, bool) {
	for _, r := range rules {
		if r.length == length && (r.anyMode || r.siteCode == siteCode) {
			return r, true
		}
	}
	return rule{}, false
}

// accumulate shifts the bits of s into an unsigned integer, most
// significant bit first.
func accumulate(bits []byte, s span) uint64 {
	var v uint64
	for i := s.start; i < s.end; i++ {
		v <<= 1
		if bits[i] != 0 {
			v |= 1
		}
	}
	return v
}

// checkParity reports whether the ones in bits[s] add up to the wanted
// parity.
func checkParity(bits []byte, s span, even bool) bool {
	ones := 0
	for i := s.start; i < s.end; i++ {
		if bits[i] != 0 {
			ones++
		}
	}
	return (ones%2 == 0) == even
}

func parity(evenOK, oddOK bool) Parity {
	if evenOK && oddOK {
		return ParityOK
	}
	return ParityBad
}

// Leading bit is even parity over the first half, trailing bit odd parity
// over the second half.
func parity26(bits []byte) Parity {
	return parity(checkParity(bits, span{0, 13}, true), checkParity(bits, span{13, 26}, false))
}

func decode26(bits []byte) Credential {
	return Credential{
		Format:   Format26,
		CardCode: accumulate(bits, span{1, 25}),
		Parity:   parity26(bits),
	}
}

// Facility ends at index 9 and card starts there, so bit 9 belongs to the
// card alone. Whether the layout ever meant bit 9 to be shared is
// unresolved; the spans stay as readers in the field decoded them.
func decode26Site(bits []byte) Credential {
	return Credential{
		Format:       Format26Site,
		FacilityCode: accumulate(bits, span{1, 9}),
		CardCode:     accumulate(bits, span{9, 25}),
		Parity:       parity26(bits),
	}
}

func decode35(bits []byte) Credential {
	return Credential{
		Format:       Format35,
		FacilityCode: accumulate(bits, span{2, 14}),
		CardCode:     accumulate(bits, span{14, 34}),
	}
}

// Bit 17 belongs to neither field.
func decode37(bits []byte) Credential {
	return Credential{
		Format:       Format37,
		FacilityCode: accumulate(bits, span{2, 17}),
		CardCode:     accumulate(bits, span{18, 36}),
		Parity:       parity(checkParity(bits, span{0, 19}, true), checkParity(bits, span{18, 37}, false)),
	}
}

// The UID arrives most significant bit first and is reported in the
// little-endian register order readers print.
func decode32UID(frame []byte) Credential {
	return Credential{
		Format: Format32UID,
		UID:    bits.ReverseBytes32(uint32(accumulate(frame, span{0, 32}))),
	}
}
