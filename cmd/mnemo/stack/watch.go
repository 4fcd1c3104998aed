package stack

import (
	"fmt"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/watch"
	"github.com/papercomputeco/mnemo/pkg/worker"
)

// Watch wires a file watcher over root to an async capture pool. The caller
// runs the watcher and closes the pool after the watcher returns.
func (s *Stack) Watch(root string, onOutcome func(worker.Job, *memory.CaptureOutcome, error)) (*watch.Watcher, *worker.Pool, error) {
	debounce, err := parseDuration(s.Config.Watch.Debounce)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid watch.debounce: %w", err)
	}

	pool, err := worker.NewPool(&worker.Config{
		Memory:    s.Memory,
		OnOutcome: onOutcome,
		Logger:    s.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating capture pool: %w", err)
	}

	w, err := watch.New(watch.Config{
		Root:     root,
		Ignore:   s.Config.Watch.Ignore,
		Debounce: debounce,
		OnChange: watch.CaptureHandler(root, s.Ranges, pool, s.logger),
		Logger:   s.logger,
	})
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return w, pool, nil
}
