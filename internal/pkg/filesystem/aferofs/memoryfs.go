package aferofs

import (
	"context"
	"sync"

	"github.com/spf13/afero"
)

// NewMemoryFs creates an in-memory filesystem, it is used in tests.
func NewMemoryFs() *Fs {
	return &Fs{
		apiName:  "memory",
		backend:  afero.NewBasePathFs(afero.NewMemMapFs(), "/"),
		basePath: "/",
		locker:   &memoryLocker{locks: make(map[string]*sync.Mutex)},
	}
}

// memoryLocker serializes access inside the process only.
type memoryLocker struct {
	mapLock sync.Mutex
	locks   map[string]*sync.Mutex
}

func (l *memoryLocker) lock(ctx context.Context, path string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mapLock.Lock()
	m, ok := l.locks[path]
	if !ok {
		m = &sync.Mutex{}
		l.locks[path] = m
	}
	l.mapLock.Unlock()

	m.Lock()
	return m.Unlock, nil
}
