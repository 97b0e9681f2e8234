package ota

import (
	"fmt"
	"os"
)

// GenerateFile reads the raw binary at binPath, encodes it with versionHex,
// and writes the image to destPath, replacing any existing file.
// Returns the header that was written.
func GenerateFile(binPath, versionHex, destPath string) (*Header, error) {
	payload, err := os.ReadFile(binPath)
	if err != nil {
		return nil, fmt.Errorf("read firmware binary: %w", err)
	}

	data, err := Encode(payload, versionHex)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}

	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("verify written image: %w", err)
	}
	return &img.Header, nil
}

// InspectFile reads and decodes the OTA image at path.
func InspectFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return Decode(data)
}
