package besteffort

import (
	"log/slog"
	"sync"
)

// Pair runs primary and secondary concurrently and waits for both.
// Only the primary's error is returned; a secondary failure is logged with
// msg and attrs and otherwise dropped.
func Pair(primary, secondary func() error, msg string, attrs ...any) error {
	var (
		wg     sync.WaitGroup
		secErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		secErr = secondary()
	}()
	err := primary()
	wg.Wait()
	if secErr != nil {
		slog.Warn(msg, append(attrs, "err", secErr)...)
	}
	return err
}
