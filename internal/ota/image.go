package ota

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Header layout constants. All integers are little-endian.
const (
	// HeaderSize is the full size of the header written before the payload.
	HeaderSize = 32

	// HeaderNumber is the header format number stored at offset 4.
	HeaderNumber uint32 = 0x00000001

	// HeaderLength is the value stored in the header length field (offset 12).
	// It counts the fields after the signature, not the full header.
	HeaderLength uint32 = 0x00000018

	// OffsetAddress is the payload offset stored at offset 24.
	OffsetAddress uint32 = 0x00000020

	// Reserved fills the last header word.
	Reserved uint32 = 0xFFFFFFFF
)

// Signature identifies an OTA image (offset 8).
var Signature = [4]byte{'O', 'T', 'A', '1'}

var (
	// ErrInvalidVersion is returned when the version string is not a 32-bit hex value.
	ErrInvalidVersion = errors.New("invalid firmware version")

	// ErrShortImage is returned by Decode when the input is smaller than a header.
	ErrShortImage = errors.New("image shorter than header")

	// ErrBadSignature is returned by Decode when the signature is not OTA1.
	ErrBadSignature = errors.New("bad image signature")

	// ErrBadHeader is returned by Decode when a fixed header field has the wrong value.
	ErrBadHeader = errors.New("bad image header")

	// ErrSizeMismatch is returned by Decode when the size field disagrees with the payload.
	ErrSizeMismatch = errors.New("payload size mismatch")

	// ErrChecksumMismatch is returned by Decode when the checksum field disagrees with the payload.
	ErrChecksumMismatch = errors.New("payload checksum mismatch")
)

// Header is the decoded form of the 32-byte OTA header.
type Header struct {
	Version       uint32
	HeaderNumber  uint32
	Signature     [4]byte
	HeaderLength  uint32
	Checksum      uint32
	PayloadSize   uint32
	OffsetAddress uint32
	Reserved      uint32
}

// Image is a decoded OTA image.
type Image struct {
	Header  Header
	Payload []byte
}

// ParseVersion parses a hex version string such as "0102" or "0x01020304".
func ParseVersion(versionHex string) (uint32, error) {
	s := strings.TrimSpace(versionHex)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, versionHex)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, versionHex)
	}
	return uint32(v), nil
}

// Checksum returns the sum of all payload bytes modulo 2^32.
func Checksum(payload []byte) uint32 {
	var sum uint32
	for _, b := range payload {
		sum += uint32(b)
	}
	return sum
}

// Encode prepends the OTA header to payload.
func Encode(payload []byte, versionHex string) ([]byte, error) {
	version, err := ParseVersion(versionHex)
	if err != nil {
		return nil, err
	}

	out := make([]byte, HeaderSize+len(payload))
	le := binary.LittleEndian
	le.PutUint32(out[0:4], version)
	le.PutUint32(out[4:8], HeaderNumber)
	copy(out[8:12], Signature[:])
	le.PutUint32(out[12:16], HeaderLength)
	le.PutUint32(out[16:20], Checksum(payload))
	le.PutUint32(out[20:24], uint32(len(payload)))
	le.PutUint32(out[24:28], OffsetAddress)
	le.PutUint32(out[28:32], Reserved)
	copy(out[HeaderSize:], payload)

	return out, nil
}

// Decode parses an OTA image and verifies its signature, fixed header fields,
// payload size and checksum.
// The returned payload aliases data.
func Decode(data []byte) (*Image, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortImage, len(data))
	}

	le := binary.LittleEndian
	h := Header{
		Version:       le.Uint32(data[0:4]),
		HeaderNumber:  le.Uint32(data[4:8]),
		HeaderLength:  le.Uint32(data[12:16]),
		Checksum:      le.Uint32(data[16:20]),
		PayloadSize:   le.Uint32(data[20:24]),
		OffsetAddress: le.Uint32(data[24:28]),
		Reserved:      le.Uint32(data[28:32]),
	}
	copy(h.Signature[:], data[8:12])

	if h.Signature != Signature {
		return nil, fmt.Errorf("%w: %q", ErrBadSignature, h.Signature[:])
	}

	switch {
	case h.HeaderNumber != HeaderNumber:
		return nil, fmt.Errorf("%w: header number 0x%08X", ErrBadHeader, h.HeaderNumber)
	case h.HeaderLength != HeaderLength:
		return nil, fmt.Errorf("%w: header length 0x%08X", ErrBadHeader, h.HeaderLength)
	case h.OffsetAddress != OffsetAddress:
		return nil, fmt.Errorf("%w: offset address 0x%08X", ErrBadHeader, h.OffsetAddress)
	}

	payload := data[HeaderSize:]
	if int(h.PayloadSize) != len(payload) {
		return nil, fmt.Errorf("%w: header says %d, have %d", ErrSizeMismatch, h.PayloadSize, len(payload))
	}
	if sum := Checksum(payload); sum != h.Checksum {
		return nil, fmt.Errorf("%w: header says 0x%08X, computed 0x%08X", ErrChecksumMismatch, h.Checksum, sum)
	}

	return &Image{Header: h, Payload: payload}, nil
}

// VersionString formats the version field the way it is entered on the command line.
func (h Header) VersionString() string {
	return fmt.Sprintf("%08X", h.Version)
}
