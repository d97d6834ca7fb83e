// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux
// +build !linux

package capture

// New returns an idle SimSource; live AF_PACKET capture requires Linux.
// ifaceName is accepted for interface-compatibility with the Linux build
// but otherwise unused.
func New(ifaceName string) (Source, error) {
	return NewSimSource(nil), nil
}
