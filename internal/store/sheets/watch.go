package sheets

import (
	"context"
	"time"

	"acctlog/internal/log"
)

// Watch polls the spreadsheet until ctx is done and publishes a snapshot
// whenever either sheet changed since the last read. Poll failures are
// logged and retried on the next tick.
func (s *Store) Watch(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "Watching spreadsheet for changes",
		"interval", s.opts.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Spreadsheet watch stopped")
			return nil
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Store) poll(ctx context.Context) {
	_, _, docSum, err := s.readDocuments(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to poll monthly documents", log.FieldError, err.Error())
	} else if s.swapHash(&s.docHash, docSum) {
		s.logger.DebugContext(ctx, "Monthly documents changed remotely")
		s.publishEntries(ctx)
	}

	_, _, locSum, err := s.readLocations(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to poll locations", log.FieldError, err.Error())
	} else if s.swapHash(&s.locHash, locSum) {
		s.logger.DebugContext(ctx, "Locations changed remotely")
		s.publishLocations(ctx)
	}
}

// swapHash stores sum and reports whether it differs from the previous value.
func (s *Store) swapHash(dst *[32]byte, sum [32]byte) bool {
	s.hashMu.Lock()
	defer s.hashMu.Unlock()
	if *dst == sum {
		return false
	}
	*dst = sum
	return true
}
