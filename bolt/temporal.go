package bolt

import (
	"time"

	"boltgraph/internal/errs"
	"boltgraph/packstream"
)

// Temporal is the canonical internal representation every wire temporal
// structure converts to/from. Exactly one of Zone/OffsetSeconds is set for
// datetime-bearing variants; HasTime/HasDate/HasOffset/HasZone say which
// wire shape produced it so re-encoding picks the matching structure.
type Temporal struct {
	Time          time.Time
	HasDate       bool
	HasTime       bool
	HasOffset     bool
	HasZone       bool
	OffsetSeconds int64
	Zone          string // IANA zone name, e.g. "Europe/Berlin"
	Duration      bool
	Months        int64
	Days          int64
	Seconds       int64
	Nanoseconds   int64
}

const nanosPerSecond = 1_000_000_000

// DecodeTemporal converts a recognized temporal structure into the
// canonical representation.
func DecodeTemporal(s packstream.Structure) (Temporal, error) {
	switch s.Signature {
	case sigDate:
		days, err := intField(s, 0)
		if err != nil {
			return Temporal{}, err
		}
		return Temporal{Time: epoch().AddDate(0, 0, int(days)), HasDate: true}, nil

	case sigLocalTime:
		ns, err := intField(s, 0)
		if err != nil {
			return Temporal{}, err
		}
		return Temporal{Time: epoch().Add(time.Duration(ns)), HasTime: true}, nil

	case sigTime:
		ns, err := intField(s, 0)
		if err != nil {
			return Temporal{}, err
		}
		offset, err := intField(s, 1)
		if err != nil {
			return Temporal{}, err
		}
		loc := time.FixedZone("", int(offset))
		return Temporal{
			Time:          epoch().Add(time.Duration(ns)).In(loc),
			HasTime:       true,
			HasOffset:     true,
			OffsetSeconds: offset,
		}, nil

	case sigLocalDateTime:
		secs, err := intField(s, 0)
		if err != nil {
			return Temporal{}, err
		}
		nanos, err := intField(s, 1)
		if err != nil {
			return Temporal{}, err
		}
		return Temporal{
			Time:    time.Unix(secs, nanos).UTC(),
			HasDate: true, HasTime: true,
		}, nil

	case sigDateTime:
		secs, err := intField(s, 0)
		if err != nil {
			return Temporal{}, err
		}
		nanos, err := intField(s, 1)
		if err != nil {
			return Temporal{}, err
		}
		offset, err := intField(s, 2)
		if err != nil {
			return Temporal{}, err
		}
		loc := time.FixedZone("", int(offset))
		return Temporal{
			Time:          time.Unix(secs, nanos).In(loc),
			HasDate:       true, HasTime: true, HasOffset: true,
			OffsetSeconds: offset,
		}, nil

	case sigDateTimeZoneID:
		secs, err := intField(s, 0)
		if err != nil {
			return Temporal{}, err
		}
		nanos, err := intField(s, 1)
		if err != nil {
			return Temporal{}, err
		}
		zoneName, ok := field(s, 2).(string)
		if !ok {
			return Temporal{}, errs.New(errs.Protocol, "bolt: datetime zone id is not a string")
		}
		loc, err := time.LoadLocation(zoneName)
		if err != nil {
			loc = time.UTC
		}
		return Temporal{
			Time:    time.Unix(secs, nanos).In(loc),
			HasDate: true, HasTime: true, HasZone: true,
			Zone: zoneName,
		}, nil

	case sigDuration:
		months, err := intField(s, 0)
		if err != nil {
			return Temporal{}, err
		}
		days, err := intField(s, 1)
		if err != nil {
			return Temporal{}, err
		}
		secs, err := intField(s, 2)
		if err != nil {
			return Temporal{}, err
		}
		nanos, err := intField(s, 3)
		if err != nil {
			return Temporal{}, err
		}
		return Temporal{Duration: true, Months: months, Days: days, Seconds: secs, Nanoseconds: nanos}, nil

	default:
		return Temporal{}, errs.New(errs.Protocol, "bolt: not a temporal structure")
	}
}

// EncodeTemporal renders t back to the wire structure matching the shape
// it was decoded with (or constructed with).
func EncodeTemporal(t Temporal) (packstream.Structure, error) {
	switch {
	case t.Duration:
		return packstream.Structure{Signature: sigDuration, Fields: []any{t.Months, t.Days, t.Seconds, t.Nanoseconds}}, nil
	case t.HasDate && t.HasTime && t.HasZone:
		return packstream.Structure{Signature: sigDateTimeZoneID, Fields: []any{epochSeconds(t.Time), int64(t.Time.Nanosecond()), t.Zone}}, nil
	case t.HasDate && t.HasTime && t.HasOffset:
		return packstream.Structure{Signature: sigDateTime, Fields: []any{epochSeconds(t.Time), int64(t.Time.Nanosecond()), t.OffsetSeconds}}, nil
	case t.HasDate && t.HasTime:
		return packstream.Structure{Signature: sigLocalDateTime, Fields: []any{epochSeconds(t.Time), int64(t.Time.Nanosecond())}}, nil
	case t.HasTime && t.HasOffset:
		nanos := int64(t.Time.Sub(epoch()).Nanoseconds())
		return packstream.Structure{Signature: sigTime, Fields: []any{nanos, t.OffsetSeconds}}, nil
	case t.HasTime:
		nanos := int64(t.Time.Sub(epoch()).Nanoseconds())
		return packstream.Structure{Signature: sigLocalTime, Fields: []any{nanos}}, nil
	case t.HasDate:
		days := int64(t.Time.Sub(epoch()).Hours() / 24)
		return packstream.Structure{Signature: sigDate, Fields: []any{days}}, nil
	default:
		return packstream.Structure{}, errs.New(errs.Protocol, "bolt: temporal value has no recognized shape")
	}
}

func epoch() time.Time { return time.Unix(0, 0).UTC() }

func epochSeconds(t time.Time) int64 {
	return t.Unix()
}

func field(s packstream.Structure, i int) any {
	if i < 0 || i >= len(s.Fields) {
		return nil
	}
	return s.Fields[i]
}

func intField(s packstream.Structure, i int) (int64, error) {
	v := field(s, i)
	n, ok := v.(int64)
	if !ok {
		return 0, errs.New(errs.Protocol, "bolt: expected integer temporal field")
	}
	return n, nil
}
