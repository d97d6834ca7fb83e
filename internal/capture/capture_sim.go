// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package capture

import (
	"context"

	"ddosd/internal/flowtable"
)

// SimSource replays a fixed, pre-decoded packet sequence, used on
// non-Linux platforms in place of AFPacketSource and in tests that want a
// deterministic traffic generator rather than a live socket. Grounded on
// the teacher's kernel.SimKernel.InjectPacket pattern of feeding
// synthetic packets through the same path as a real capture.
type SimSource struct {
	Packets []flowtable.PacketInfo
}

// NewSimSource constructs a SimSource that replays packets in order, once.
func NewSimSource(packets []flowtable.PacketInfo) *SimSource {
	return &SimSource{Packets: packets}
}

// Run sends every packet in order, then blocks until ctx is cancelled.
func (s *SimSource) Run(ctx context.Context, out chan<- flowtable.PacketInfo) error {
	for _, pkt := range s.Packets {
		select {
		case out <- pkt:
		case <-ctx.Done():
			return nil
		}
	}
	<-ctx.Done()
	return nil
}

// Close is a no-op for SimSource.
func (s *SimSource) Close() error { return nil }
