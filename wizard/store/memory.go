package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryPersister keeps snapshots in process memory. Used by tests and
// available as a fallback when Redis is not configured in development.
type MemoryPersister struct {
	mu    sync.RWMutex
	snaps map[uuid.UUID][]byte
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{snaps: make(map[uuid.UUID][]byte)}
}

func (p *MemoryPersister) Save(ctx context.Context, clientID uuid.UUID, snap *Snapshot) error {
	data, err := snap.Serialize()
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps[clientID] = data
	return nil
}

func (p *MemoryPersister) Load(ctx context.Context, clientID uuid.UUID) (*Snapshot, error) {
	p.mu.RLock()
	data, ok := p.snaps[clientID]
	p.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return DeserializeSnapshot(data)
}

func (p *MemoryPersister) Delete(ctx context.Context, clientID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.snaps, clientID)
	return nil
}
