package churn

import (
	"context"
	"time"

	"github.com/keboola/devgate/internal/pkg/encoding/json"
	"github.com/keboola/devgate/internal/pkg/filesystem"
	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

// counter is the persisted gross churn of a task.
type counter struct {
	Lines     int64     `json:"lines"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func counterPath(key string) string {
	return filesystem.Join(grossDir, key+".json")
}

func (s *Store) readCounter(key string) (c counter, found bool, err error) {
	path := counterPath(key)
	if !s.counters.IsFile(path) {
		return counter{}, false, nil
	}

	content, err := s.counters.ReadFile(path)
	if err != nil {
		return counter{}, false, errors.Errorf(`cannot read "%s": %w`, path, err)
	}
	if err := json.Decode(content, &c); err != nil {
		return counter{}, false, errors.Errorf(`cannot decode "%s": %w`, path, err)
	}
	if c.Lines < 0 {
		return counter{}, false, errors.Errorf(`cannot decode "%s": negative lines count %d`, path, c.Lines)
	}
	return c, true, nil
}

// writeCounter applies the update under a lock, so concurrent increments are not lost.
// A corrupted counter is replaced. The persisted counter is returned.
func (s *Store) writeCounter(ctx context.Context, key string, update func(counter) counter) (counter, error) {
	path := counterPath(key)
	unlock, err := s.counters.Lock(ctx, path)
	if err != nil {
		return counter{}, err
	}
	defer unlock()

	c, _, err := s.readCounter(key)
	if err != nil {
		s.logger.Warnf(ctx, `Replacing corrupted gross churn counter: %s`, err.Error())
	}

	c = update(c)
	c.UpdatedAt = s.clock.Now().UTC()

	content, err := json.Encode(c, false)
	if err != nil {
		return counter{}, err
	}
	if err := s.counters.WriteFileAtomic(path, content); err != nil {
		return counter{}, errors.Errorf(`cannot write gross churn counter of "%s": %w`, key, err)
	}
	return c, nil
}

func (s *Store) resetCounter(ctx context.Context, key string) error {
	_, err := s.writeCounter(ctx, key, func(counter) counter { return counter{} })
	return err
}
