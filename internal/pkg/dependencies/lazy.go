package dependencies

import "sync"

// lazy initializes the value on the first call, the error is remembered too.
type lazy[T any] struct {
	once  sync.Once
	value T
	err   error
}

func (l *lazy[T]) InitAndGet(fn func() (T, error)) (T, error) {
	l.once.Do(func() {
		l.value, l.err = fn()
	})
	return l.value, l.err
}
