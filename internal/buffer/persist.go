package buffer

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/algopatterns/collab/internal/logger"
)

const defaultPersistTimeout = 5 * time.Second

// runs store operations for one room with a per-attempt timeout, retrying
// each write once before giving up
type Persister struct {
	store   Store
	roomKey string
	timeout time.Duration
}

func NewPersister(store Store, roomKey string, timeout time.Duration) *Persister {
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}

	return &Persister{
		store:   store,
		roomKey: roomKey,
		timeout: timeout,
	}
}

func (p *Persister) Load() (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	return p.store.Load(ctx, p.roomKey)
}

func (p *Persister) BindDocument(documentID string) error {
	return p.retry("bind document", func(ctx context.Context) error {
		return p.store.BindDocument(ctx, p.roomKey, documentID)
	})
}

func (p *Persister) SaveUpdates(updates []Event) error {
	return p.retry("save updates", func(ctx context.Context) error {
		return p.store.SaveUpdates(ctx, p.roomKey, updates)
	})
}

func (p *Persister) SetAlarm(at time.Time) error {
	return p.retry("set alarm", func(ctx context.Context) error {
		return p.store.SetAlarm(ctx, p.roomKey, at)
	})
}

func (p *Persister) ClearAlarm() error {
	return p.retry("clear alarm", func(ctx context.Context) error {
		return p.store.ClearAlarm(ctx, p.roomKey)
	})
}

func (p *Persister) Purge() error {
	return p.retry("purge", func(ctx context.Context) error {
		return p.store.Purge(ctx, p.roomKey)
	})
}

func (p *Persister) retry(op string, fn func(ctx context.Context) error) error {
	err := p.attempt(fn)
	if err == nil {
		return nil
	}

	logger.Warn("replay store write failed, retrying",
		"room", p.roomKey,
		"op", op,
		"error", err,
	)

	if err := p.attempt(fn); err != nil {
		return fmt.Errorf("%s failed after retry: %w", op, err)
	}

	return nil
}

func (p *Persister) attempt(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	return fn(ctx)
}
