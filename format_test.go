package wiegand

import (
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// field renders v as width bits, most significant first.
func field(v uint64, width int) []byte {
	bits := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		bits[i] = byte(v & 1)
		v >>= 1
	}
	return bits
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func ones(bits []byte) int {
	n := 0
	for _, b := range bits {
		n += int(b)
	}
	return n
}

// frame26 wraps a 24-bit payload in valid H10301 parity bits.
func frame26(payload []byte) []byte {
	even := byte(ones(payload[:12]) % 2)
	odd := byte(1 - ones(payload[12:])%2)
	return concat([]byte{even}, payload, []byte{odd})
}

// frame37 wraps a 35-bit payload in valid H10304 parity bits.
func frame37(payload []byte) []byte {
	f := concat([]byte{0}, payload, []byte{0})
	f[0] = byte(ones(f[1:19]) % 2)
	f[36] = byte(1 - ones(f[18:36])%2)
	return f
}

// reference decodes bits[start:end] through strconv as an independent
// oracle for accumulate.
func reference(t *testing.T, bits []byte, start, end int) uint64 {
	t.Helper()
	var sb strings.Builder
	for _, b := range bits[start:end] {
		sb.WriteByte('0' + b)
	}
	v, err := strconv.ParseUint(sb.String(), 2, 64)
	require.NoError(t, err)
	return v
}

func randomBits(r *rand.Rand, n int) []byte {
	bits := make([]byte, n)
	for i := range bits {
		bits[i] = byte(r.Intn(2))
	}
	return bits
}

func TestDecode26AlternatingPattern(t *testing.T) {
	t.Parallel()

	bits := concat([]byte{1}, field(0xAAAAAA, 24), []byte{0})
	require.Len(t, bits, 26)

	c := Decode(bits, false)
	assert.Equal(t, Format26, c.Format)
	assert.Equal(t, 26, c.BitCount)
	assert.Equal(t, uint64(0xAAAAAA), c.CardCode)
	assert.Zero(t, c.FacilityCode)
}

func TestDecode26IgnoresParityBits(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(26))
	for i := 0; i < 200; i++ {
		bits := randomBits(r, 26)
		want := reference(t, bits, 1, 25)

		c := Decode(bits, false)
		require.Equal(t, want, c.CardCode, "frame %v", bits)

		bits[0] ^= 1
		bits[25] ^= 1
		assert.Equal(t, want, Decode(bits, false).CardCode, "flipped parity bits changed card code")
	}
}

func TestDecode26SiteCode(t *testing.T) {
	t.Parallel()

	bits := frame26(concat(field(12, 8), field(3456, 16)))
	c := Decode(bits, true)
	assert.Equal(t, Format26Site, c.Format)
	assert.Equal(t, uint64(12), c.FacilityCode)
	assert.Equal(t, uint64(3456), c.CardCode)
	assert.Equal(t, ParityOK, c.Parity)

	r := rand.New(rand.NewSource(9))
	for i := 0; i < 200; i++ {
		bits := randomBits(r, 26)
		c := Decode(bits, true)
		require.Equal(t, reference(t, bits, 1, 9), c.FacilityCode)
		require.Equal(t, reference(t, bits, 9, 25), c.CardCode)
	}
}

func TestDecode26ModeSelectsLayout(t *testing.T) {
	t.Parallel()

	bits := frame26(concat(field(0xFF, 8), field(1, 16)))
	assert.Equal(t, uint64(0xFF0001), Decode(bits, false).CardCode)

	site := Decode(bits, true)
	assert.Equal(t, uint64(0xFF), site.FacilityCode)
	assert.Equal(t, uint64(1), site.CardCode)
}

func TestDecode35(t *testing.T) {
	t.Parallel()

	bits := concat([]byte{1, 0}, field(0xABC, 12), field(0x12345, 20), []byte{1})
	require.Len(t, bits, 35)

	for _, site := range []bool{false, true} {
		c := Decode(bits, site)
		assert.Equal(t, Format35, c.Format)
		assert.Equal(t, uint64(0xABC), c.FacilityCode)
		assert.Equal(t, uint64(0x12345), c.CardCode)
		assert.Equal(t, ParityUnchecked, c.Parity)
	}

	// The two fields cover bits 2..33 exactly once between them.
	r := rand.New(rand.NewSource(35))
	for i := 0; i < 200; i++ {
		bits := randomBits(r, 35)
		c := Decode(bits, false)
		require.Equal(t, reference(t, bits, 2, 34), c.FacilityCode<<20|c.CardCode)
	}
}

func TestDecode37(t *testing.T) {
	t.Parallel()

	payload := concat([]byte{1}, field(0x5A5A, 15), []byte{1}, field(0x2BEEF, 18))
	require.Len(t, payload, 35)
	bits := frame37(payload)

	c := Decode(bits, false)
	assert.Equal(t, Format37, c.Format)
	assert.Equal(t, uint64(0x5A5A), c.FacilityCode)
	assert.Equal(t, uint64(0x2BEEF), c.CardCode)
	assert.Equal(t, ParityOK, c.Parity)

	// Bit 17 feeds neither field.
	bits[17] ^= 1
	flipped := Decode(bits, false)
	assert.Equal(t, c.FacilityCode, flipped.FacilityCode)
	assert.Equal(t, c.CardCode, flipped.CardCode)
	assert.Equal(t, ParityBad, flipped.Parity)
}

func TestDecode32UID(t *testing.T) {
	t.Parallel()

	c := Decode(concat(field(0xFFFFFFFF, 32)), false)
	assert.Equal(t, Format32UID, c.Format)
	assert.Equal(t, uint32(0xFFFFFFFF), c.UID)

	c = Decode(field(0x01020304, 32), true)
	assert.Equal(t, uint32(0x04030201), c.UID)
	assert.Equal(t, "32-bit UID: uid=04030201", c.String())
}

func TestDecodeUnknown(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 25, 27, 34, 36, 40, 100} {
		c := Decode(make([]byte, n), false)
		assert.Equal(t, FormatUnknown, c.Format, "%d bits", n)
		assert.Equal(t, n, c.BitCount)
		assert.Zero(t, c.FacilityCode)
		assert.Zero(t, c.CardCode)
		assert.Zero(t, c.UID)
	}
	assert.Equal(t, "unknown 40-bit frame", Decode(make([]byte, 40), true).String())
}

func TestDecodeParity26(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(2610))
	for i := 0; i < 100; i++ {
		bits := frame26(randomBits(r, 24))
		require.Equal(t, ParityOK, Decode(bits, false).Parity)

		bits[1+r.Intn(24)] ^= 1
		require.Equal(t, ParityBad, Decode(bits, false).Parity)
	}
}

func TestDecodeCopiesBits(t *testing.T) {
	t.Parallel()

	bits := field(0xDEADBEEF, 32)
	c := Decode(bits, false)
	bits[0] = 0
	assert.Equal(t, byte(1), c.Bits[0])
	assert.Len(t, c.Bits, 32)
}

func TestDecodeTreatsNonZeroAsOne(t *testing.T) {
	t.Parallel()

	frames := [][]byte{
		frame26(concat(field(12, 8), field(3456, 16))),
		frame37(field(0x5A5A5A5A5, 35)),
		field(0xDEADBEEF, 32),
	}
	for _, want := range frames {
		loose := make([]byte, len(want))
		for i, b := range want {
			loose[i] = b * 2
			if b == 1 && i%3 == 0 {
				loose[i] = 0xFF
			}
		}
		for _, siteCode := range []bool{false, true} {
			assert.Equal(t, Decode(want, siteCode), Decode(loose, siteCode))
		}
	}
}

func TestCredentialString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		c    Credential
		want string
	}{
		{Credential{Format: Format26, CardCode: 42, Parity: ParityOK}, "26-bit: card=42 parity=ok"},
		{Credential{Format: Format26Site, FacilityCode: 12, CardCode: 3456, Parity: ParityBad}, "26-bit site code: facility=12 card=3456 parity=bad"},
		{Credential{Format: Format35, FacilityCode: 1, CardCode: 2}, "35-bit Corporate 1000: facility=1 card=2 parity=unchecked"},
		{Credential{Format: Format37, FacilityCode: 3, CardCode: 4, Parity: ParityOK}, "37-bit H10304: facility=3 card=4 parity=ok"},
		{Credential{Format: Format32UID, UID: 0x0a1b2c3d}, "32-bit UID: uid=0a1b2c3d"},
		{Credential{BitCount: 12}, "unknown 12-bit frame"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.c.String())
	}
}
