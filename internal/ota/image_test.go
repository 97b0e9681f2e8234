package ota

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_HeaderLayout(t *testing.T) {
	payload := []byte{0x01, 0x02, 0xFF}

	data, err := Encode(payload, "01020304")
	require.NoError(t, err)
	require.Len(t, data, HeaderSize+len(payload))

	le := binary.LittleEndian
	assert.Equal(t, uint32(0x01020304), le.Uint32(data[0:4]))
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, data[0:4])
	assert.Equal(t, uint32(1), le.Uint32(data[4:8]))
	assert.Equal(t, []byte("OTA1"), data[8:12])
	assert.Equal(t, uint32(0x18), le.Uint32(data[12:16]))
	assert.Equal(t, uint32(0x01+0x02+0xFF), le.Uint32(data[16:20]))
	assert.Equal(t, uint32(3), le.Uint32(data[20:24]))
	assert.Equal(t, uint32(0x20), le.Uint32(data[24:28]))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, data[28:32])
	assert.Equal(t, payload, data[HeaderSize:])
}

func TestEncode_EmptyPayload(t *testing.T) {
	data, err := Encode(nil, "1")
	require.NoError(t, err)
	assert.Len(t, data, HeaderSize)

	img, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), img.Header.Checksum)
	assert.Empty(t, img.Payload)
}

func TestEncode_InvalidVersion(t *testing.T) {
	cases := []string{"ZZZZ", "", "   ", "-1", "1FFFFFFFF", "0x"}
	for _, v := range cases {
		t.Run(v, func(t *testing.T) {
			_, err := Encode([]byte{1}, v)
			assert.ErrorIs(t, err, ErrInvalidVersion)
		})
	}
}

func TestParseVersion_AcceptsPrefix(t *testing.T) {
	v, err := ParseVersion("0xFFFFFFFF")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFF), v)

	v, err = ParseVersion("abc")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xABC), v)
}

func TestChecksum_WrapsAt32Bits(t *testing.T) {
	payload := bytes.Repeat([]byte{0xFF}, 1000)
	assert.Equal(t, uint32(255*1000), Checksum(payload))

	var want uint64
	big := bytes.Repeat([]byte{0xFF, 0x80, 0x01}, 4096)
	for _, b := range big {
		want += uint64(b)
	}
	assert.Equal(t, uint32(want%(1<<32)), Checksum(big))
}

func TestDecode_RoundTrip(t *testing.T) {
	payloads := [][]byte{
		{0x00},
		[]byte("firmware image body"),
		bytes.Repeat([]byte{0xA5}, 4097),
	}
	for _, p := range payloads {
		data, err := Encode(p, "00000002")
		require.NoError(t, err)

		img, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, p, img.Payload)
		assert.Equal(t, Checksum(p), img.Header.Checksum)
		assert.Equal(t, uint32(len(p)), img.Header.PayloadSize)
		assert.Equal(t, "00000002", img.Header.VersionString())
	}
}

func TestDecode_Errors(t *testing.T) {
	good, err := Encode([]byte{1, 2, 3, 4}, "10")
	require.NoError(t, err)

	_, err = Decode(good[:HeaderSize-1])
	assert.ErrorIs(t, err, ErrShortImage)

	badSig := append([]byte(nil), good...)
	copy(badSig[8:12], "OTA2")
	_, err = Decode(badSig)
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = Decode(good[:len(good)-1])
	assert.ErrorIs(t, err, ErrSizeMismatch)

	corrupt := append([]byte(nil), good...)
	corrupt[HeaderSize] ^= 0xFF
	_, err = Decode(corrupt)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestDecode_BadFixedFields(t *testing.T) {
	good, err := Encode([]byte{1, 2, 3, 4}, "10")
	require.NoError(t, err)

	tests := []struct {
		name   string
		offset int
		value  uint32
	}{
		{"header number", 4, 9},
		{"header length", 12, 0},
		{"offset address", 24, 77},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := append([]byte(nil), good...)
			binary.LittleEndian.PutUint32(img[tt.offset:tt.offset+4], tt.value)

			_, err := Decode(img)
			assert.ErrorIs(t, err, ErrBadHeader)
		})
	}
}

func TestGenerateFile(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "fw.bin")
	dest := filepath.Join(dir, "fw.ota")
	payload := []byte("hello module")
	require.NoError(t, os.WriteFile(bin, payload, 0o644))

	// Existing destination is replaced, not appended to.
	require.NoError(t, os.WriteFile(dest, bytes.Repeat([]byte{0xEE}, 100), 0o644))

	h, err := GenerateFile(bin, "0A0B", dest)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0A0B), h.Version)

	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Len(t, written, HeaderSize+len(payload))

	img, err := InspectFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, img.Payload)
}

func TestGenerateFile_MissingBinary(t *testing.T) {
	dir := t.TempDir()
	_, err := GenerateFile(filepath.Join(dir, "missing.bin"), "1", filepath.Join(dir, "out.ota"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, statErr := os.Stat(filepath.Join(dir, "out.ota"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerateFile_InvalidVersionWritesNothing(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "fw.bin")
	require.NoError(t, os.WriteFile(bin, []byte{1}, 0o644))

	_, err := GenerateFile(bin, "ZZZZ", filepath.Join(dir, "out.ota"))
	assert.ErrorIs(t, err, ErrInvalidVersion)

	_, statErr := os.Stat(filepath.Join(dir, "out.ota"))
	assert.True(t, os.IsNotExist(statErr))
}
