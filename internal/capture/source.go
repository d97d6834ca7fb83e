// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package capture

import (
	"context"

	"ddosd/internal/flowtable"
)

// Source produces decoded packets until ctx is cancelled or the
// underlying capture fails. Implemented by the Linux AF_PACKET capture
// (capture_linux.go) and the in-memory Sim capture used on other
// platforms and in tests (capture_sim.go).
type Source interface {
	// Run reads frames until ctx is cancelled, sending each decoded packet
	// to out. Run returns when ctx is done or the source encounters a
	// fatal error; out is never closed by Run.
	Run(ctx context.Context, out chan<- flowtable.PacketInfo) error
	Close() error
}
