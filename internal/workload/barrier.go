package workload

import (
	"context"
	"sync"
)

// teamBarrier blocks the members of a team until all of them arrived. It is
// reusable: each completed round starts a new generation.
type teamBarrier struct {
	size int

	mu      sync.Mutex
	arrived int
	release chan struct{}
}

func newTeamBarrier(size int) *teamBarrier {
	return &teamBarrier{size: size, release: make(chan struct{})}
}

func (b *teamBarrier) wait(ctx context.Context) error {
	b.mu.Lock()
	release := b.release
	b.arrived++
	if b.arrived == b.size {
		b.arrived = 0
		b.release = make(chan struct{})
		close(release)
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	select {
	case <-release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
