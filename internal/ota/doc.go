// Package ota builds and verifies OTA images for the wireless module.
//
// An OTA image is a fixed 32-byte little-endian header followed by the raw
// firmware payload:
//
//	0  version        user-supplied hex
//	4  header number  0x00000001
//	8  signature      "OTA1"
//	12 header length  0x00000018
//	16 checksum       sum of payload bytes mod 2^32
//	20 payload size
//	24 offset address 0x00000020
//	28 reserved       0xFFFFFFFF
package ota
