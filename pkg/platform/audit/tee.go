package audit

import (
	"context"

	id "garrison/pkg/domain"
)

// Appender is the write-only side of a Store. External sinks (Kafka) only
// implement this half.
type Appender interface {
	Append(ctx context.Context, event Event) error
}

// Tee writes every event to a primary store and to any number of sinks.
// Reads come from the primary. A sink failure fails the append; callers
// decide whether audit loss is tolerable.
type Tee struct {
	primary Store
	sinks   []Appender
}

// NewTee constructs a Tee over the primary store and sinks.
func NewTee(primary Store, sinks ...Appender) *Tee {
	return &Tee{primary: primary, sinks: sinks}
}

func (t *Tee) Append(ctx context.Context, event Event) error {
	if err := t.primary.Append(ctx, event); err != nil {
		return err
	}
	for _, sink := range t.sinks {
		if err := sink.Append(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tee) ListByUser(ctx context.Context, userID id.UserID) ([]Event, error) {
	return t.primary.ListByUser(ctx, userID)
}
