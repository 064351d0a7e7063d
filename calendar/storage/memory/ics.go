package memory

import (
	"context"
	"fmt"
	"io"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/cyp0633/lumencal/calendar/storage"
)

// Export writes the events matching opts as an iCalendar stream.
func (s *Store) Export(ctx context.Context, w io.Writer, opts *storage.ListOptions) error {
	events, err := s.List(ctx, opts)
	if err != nil {
		return err
	}
	return storage.EncodeEvents(w, events, s.now())
}

// Import reads an iCalendar stream and seeds every decodable event. Events
// with an existing ID are replaced. It returns the number of imported events;
// skipped components are reported in the error while valid ones are still
// imported.
func (s *Store) Import(_ context.Context, r io.Reader) (int, error) {
	events, decodeErr := storage.DecodeEvents(r)

	now := s.now()
	normalized := make([]event.Event, 0, len(events))
	for _, ev := range events {
		normalized = append(normalized, storage.NormalizePayload(event.Normalize(ev, now)))
	}
	s.Seed(normalized...)

	if decodeErr != nil {
		return len(normalized), fmt.Errorf("import: %w", decodeErr)
	}
	return len(normalized), nil
}
