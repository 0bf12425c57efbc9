package macrange

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_SmallRange(t *testing.T) {
	macs, err := Generate("00:00:00:00:00:00", "00:00:00:00:00:05", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"00:00:00:00:00:00",
		"00:00:00:00:00:01",
		"00:00:00:00:00:02",
		"00:00:00:00:00:03",
		"00:00:00:00:00:04",
		"00:00:00:00:00:05",
	}, macs)
}

func TestGenerate_MalformedStart(t *testing.T) {
	macs, err := Generate("zz:11:22:33:44:55", "00:00:00:00:00:05", 10)
	require.Error(t, err)
	assert.Nil(t, macs)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "zz:11:22:33:44:55", pe.Input)
	assert.ErrorIs(t, err, ErrInvalidHex)
}

func TestGenerate_MalformedEnd(t *testing.T) {
	_, err := Generate("00:00:00:00:00:00", "00:00:00:00:00:0g", 10)
	require.Error(t, err)
	assert.True(t, IsParseError(err))
}

func TestGenerate_InvertedRangeIsEmpty(t *testing.T) {
	for _, limit := range []int{-1, 0, 1, 100} {
		macs, err := Generate("00:00:00:00:00:05", "00:00:00:00:00:00", limit)
		require.NoError(t, err)
		assert.NotNil(t, macs)
		assert.Empty(t, macs, "limit %d", limit)
	}
}

func TestGenerate_LimitBoundary(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "negative limit yields one", limit: -3, want: 1},
		{name: "zero limit yields one", limit: 0, want: 1},
		{name: "limit one yields two", limit: 1, want: 2},
		{name: "limit below size", limit: 4, want: 5},
		{name: "limit one below size", limit: 15, want: 16},
		{name: "limit equal to size", limit: 16, want: 16},
		{name: "limit above size", limit: 100, want: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			macs, err := Generate("00:1a:4a:00:00:00", "00:1a:4a:00:00:0f", tt.limit)
			require.NoError(t, err)
			assert.Len(t, macs, tt.want)
			assert.Equal(t, "00:1a:4a:00:00:00", macs[0])
		})
	}
}

func TestGenerate_SkipsMulticast(t *testing.T) {
	// The range straddles the end of the unicast block 00:ff:... and the
	// start of the multicast block 01:00:...
	macs, err := Generate("00:ff:ff:ff:ff:fe", "01:00:00:00:00:02", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"00:ff:ff:ff:ff:fe", "00:ff:ff:ff:ff:ff"}, macs)

	// And continues past it into the next unicast block.
	macs, err = Generate("01:ff:ff:ff:ff:ff", "02:00:00:00:00:01", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"02:00:00:00:00:00", "02:00:00:00:00:01"}, macs)
}

func TestGenerate_WholeMulticastBlockIsEmpty(t *testing.T) {
	macs, err := Generate("01:00:00:00:00:00", "01:ff:ff:ff:ff:ff", 5)
	require.NoError(t, err)
	assert.Empty(t, macs)
}

func TestGenerate_AcceptsLooseInput(t *testing.T) {
	macs, err := Generate("001A4A00000A", "00:1a:4a::00:00:0B", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"00:1a:4a:00:00:0a", "00:1a:4a:00:00:0b"}, macs)
}

func TestGenerate_LargeRangeStopsAtLimit(t *testing.T) {
	macs, err := Generate("00:00:00:00:00:00", "ff:ff:ff:ff:ff:ff", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"00:00:00:00:00:00", "00:00:00:00:00:01", "00:00:00:00:00:02"}, macs)
}

func TestGenerate_LimitForCount(t *testing.T) {
	for _, n := range []int{-2, 0, 1, 2, 7, 16, 40} {
		macs, err := Generate("00:1a:4a:00:00:00", "00:1a:4a:00:00:0f", LimitForCount(n))
		require.NoError(t, err)

		want := n
		if want < 1 {
			want = 1
		}
		if want > 16 {
			want = 16
		}
		assert.Len(t, macs, want, "count %d", n)
	}
}

func TestGenerate_TopOfAddressSpace(t *testing.T) {
	macs, err := Generate("fe:ff:ff:ff:ff:fe", "ff:ff:ff:ff:ff:ff", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"fe:ff:ff:ff:ff:fe", "fe:ff:ff:ff:ff:ff"}, macs)
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		want  bool
	}{
		{name: "single multicast address", start: "01:00:00:00:00:00", end: "01:00:00:00:00:00", want: false},
		{name: "inverted range", start: "00:00:00:00:00:05", end: "00:00:00:00:00:00", want: false},
		{name: "malformed start", start: "zz:11:22:33:44:55", end: "00:00:00:00:00:05", want: false},
		{name: "empty start", start: "", end: "00:00:00:00:00:05", want: false},
		{name: "single unicast address", start: "00:1a:4a:00:00:01", end: "00:1a:4a:00:00:01", want: true},
		{name: "multicast start with unicast tail", start: "01:ff:ff:ff:ff:ff", end: "02:00:00:00:00:00", want: true},
		{name: "whole address space", start: "00:00:00:00:00:00", end: "ff:ff:ff:ff:ff:ff", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValid(tt.start, tt.end))
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uint64
		wantErr error
	}{
		{name: "canonical", input: "1a:2b:3c:4d:5e:6f", want: 0x1a2b3c4d5e6f},
		{name: "upper case", input: "1A:2B:3C:4D:5E:6F", want: 0x1a2b3c4d5e6f},
		{name: "no separators", input: "1a2b3c4d5e6f", want: 0x1a2b3c4d5e6f},
		{name: "stray colons", input: ":1a2b:3c4d5e6f:", want: 0x1a2b3c4d5e6f},
		{name: "short numeral", input: "ff", want: 0xff},
		{name: "max", input: "ff:ff:ff:ff:ff:ff", want: MaxAddress},
		{name: "empty", input: "", wantErr: ErrInvalidHex},
		{name: "only colons", input: ":::::", wantErr: ErrInvalidHex},
		{name: "non hex", input: "zz:11:22:33:44:55", wantErr: ErrInvalidHex},
		{name: "dash separators", input: "1a-2b-3c-4d-5e-6f", wantErr: ErrInvalidHex},
		{name: "plus sign", input: "+1a2b3c4d5e6f", wantErr: ErrInvalidHex},
		{name: "minus sign", input: "-1", wantErr: ErrInvalidHex},
		{name: "hex prefix", input: "0x1a2b", wantErr: ErrInvalidHex},
		{name: "whitespace", input: " 1a:2b:3c:4d:5e:6f", wantErr: ErrInvalidHex},
		{name: "49 bits", input: "1:00:00:00:00:00:00", wantErr: ErrOutOfRange},
		{name: "64 bits", input: "ffff:ffff:ffff:ffff", wantErr: ErrOutOfRange},
		{name: "beyond 64 bits", input: "1:0000:0000:0000:0000", wantErr: ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsParseError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		addr uint64
		want string
	}{
		{addr: 0, want: "00:00:00:00:00:00"},
		{addr: 0x05, want: "00:00:00:00:00:05"},
		{addr: 0x1a2b3c4d5e6f, want: "1a:2b:3c:4d:5e:6f"},
		{addr: MulticastBit, want: "01:00:00:00:00:00"},
		{addr: MaxAddress, want: "ff:ff:ff:ff:ff:ff"},
		{addr: 0x1_000000000001, want: "00:00:00:00:00:01"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.addr))
		})
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("00:1a:4a:00:00:00", "00:1a:4a:00:00:ff")
	require.NoError(t, err)
	assert.Equal(t, Range{Start: 0x001a4a000000, End: 0x001a4a0000ff}, r)
	assert.False(t, r.IsEmpty())
	assert.True(t, r.Contains(0x001a4a000010))
	assert.False(t, r.Contains(0x001a4a000100))
	assert.Equal(t, "00:1a:4a:00:00:00-00:1a:4a:00:00:ff", r.String())

	_, err = ParseRange("00:1a:4a:00:00:00", "nope")
	assert.True(t, IsParseError(err))
}

func TestRange_UsableCount(t *testing.T) {
	tests := []struct {
		name string
		r    Range
		want uint64
	}{
		{name: "empty", r: Range{Start: 5, End: 0}, want: 0},
		{name: "single unicast", r: Range{Start: 7, End: 7}, want: 1},
		{name: "single multicast", r: Range{Start: MulticastBit, End: MulticastBit}, want: 0},
		{name: "small", r: Range{Start: 0, End: 5}, want: 6},
		{name: "first unicast block", r: Range{Start: 0, End: MulticastBit - 1}, want: MulticastBit},
		{name: "first multicast block", r: Range{Start: MulticastBit, End: 2*MulticastBit - 1}, want: 0},
		{name: "straddling", r: Range{Start: MulticastBit - 2, End: 2*MulticastBit + 1}, want: 4},
		{name: "whole space", r: Range{Start: 0, End: MaxAddress}, want: (MaxAddress + 1) / 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.UsableCount())
		})
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	first, err := Generate("00:ff:ff:ff:ff:f0", "01:00:00:00:00:10", 64)
	require.NoError(t, err)
	second, err := Generate("00:ff:ff:ff:ff:f0", "01:00:00:00:00:10", 64)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
