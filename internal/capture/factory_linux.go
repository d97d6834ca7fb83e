// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package capture

// New opens a live AF_PACKET capture on ifaceName.
func New(ifaceName string) (Source, error) {
	return NewAFPacketSource(ifaceName)
}
