package etl

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/animalworks/animal-etl/pkg/animal"
	"github.com/animalworks/animal-etl/pkg/logging"
)

// bornAtLayouts are the string timestamp formats the source has been seen
// to produce, tried in order.
var bornAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// epochMillisThreshold separates unix-second from unix-millisecond epochs.
// Anything above it cannot be a plausible second-resolution timestamp.
const epochMillisThreshold = 1e11

// Transformer maps raw animal details to the canonical destination shape.
type Transformer struct {
	// strictTimestamps fails the record on an unparseable born_at instead
	// of dropping the value with a warning.
	strictTimestamps bool

	logger zerolog.Logger
}

// NewTransformer creates a transformer. With strictTimestamps false (the
// default policy) an unparseable born_at keeps the record and leaves the
// timestamp unknown.
func NewTransformer(strictTimestamps bool) *Transformer {
	return &Transformer{
		strictTimestamps: strictTimestamps,
		logger:           logging.NewLogger("transformer"),
	}
}

// Transform validates and normalizes one raw record. Failures are
// *ValidationError and discard only this record.
func (t *Transformer) Transform(d animal.Detail) (animal.Animal, error) {
	if d.ID <= 0 {
		return animal.Animal{}, &ValidationError{
			AnimalID: d.ID,
			Field:    "id",
			Reason:   "must be a positive identifier",
		}
	}
	if strings.TrimSpace(d.Name) == "" {
		return animal.Animal{}, &ValidationError{
			AnimalID: d.ID,
			Field:    "name",
			Reason:   "must be non-empty",
		}
	}

	bornAt, err := t.normalizeBornAt(d)
	if err != nil {
		return animal.Animal{}, err
	}

	out := animal.Animal{
		ID:      d.ID,
		Name:    strings.TrimSpace(d.Name),
		Friends: normalizeFriends(d.Friends),
		BornAt:  bornAt,
	}

	recordsTotal.WithLabelValues("transformed").Inc()
	return out, nil
}

// normalizeFriends produces an ordered, trimmed, non-empty friend list.
// Absence yields an empty list, never an error.
func normalizeFriends(f animal.RawFriends) []string {
	var raw []string
	if f.IsList {
		raw = f.List
	} else if f.Raw != "" {
		raw = strings.Split(f.Raw, ",")
	}

	friends := make([]string, 0, len(raw))
	for _, name := range raw {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			friends = append(friends, trimmed)
		}
	}
	return friends
}

// normalizeBornAt parses the raw born_at into RFC 3339 UTC. Absence yields
// nil; an unparseable value yields nil with a warning, or a ValidationError
// in strict mode.
func (t *Transformer) normalizeBornAt(d animal.Detail) (*string, error) {
	if !d.BornAt.Present {
		return nil, nil
	}

	parsed, err := parseBornAt(d.BornAt)
	if err != nil {
		if t.strictTimestamps {
			return nil, &ValidationError{
				AnimalID: d.ID,
				Field:    "born_at",
				Reason:   err.Error(),
			}
		}
		t.logger.Warn().
			Int("animal_id", d.ID).
			Str("born_at", d.BornAt.Value).
			Err(err).
			Msg("Unparseable birth timestamp; keeping record with unknown born_at")
		return nil, nil
	}

	formatted := parsed.UTC().Format(time.RFC3339)
	return &formatted, nil
}

// parseBornAt converts the raw wire value to a time. Numbers are unix
// epochs (seconds or milliseconds, by magnitude); strings are tried against
// the known layouts.
func parseBornAt(raw animal.RawBornAt) (time.Time, error) {
	if raw.Numeric {
		f, err := strconv.ParseFloat(raw.Value, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("epoch %q: %w", raw.Value, err)
		}
		if f < 0 {
			return time.Time{}, fmt.Errorf("epoch %q: negative", raw.Value)
		}
		if f > epochMillisThreshold {
			return time.UnixMilli(int64(f)), nil
		}
		secs := int64(f)
		nanos := int64((f - float64(secs)) * float64(time.Second))
		return time.Unix(secs, nanos), nil
	}

	value := strings.TrimSpace(raw.Value)
	for _, layout := range bornAtLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format %q", value)
}
