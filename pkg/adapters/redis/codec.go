package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/ports"
)

func ms(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMS(v string) (time.Time, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(n), nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// encodeRecord flattens a record into HSET field/value pairs.
func encodeRecord(rec *domain.Record) []any {
	return []any{
		domain.FieldID, rec.ID,
		domain.FieldNamespace, rec.Namespace,
		domain.FieldCreated, ms(rec.Created),
		domain.FieldExpires, ms(rec.Expires),
		domain.FieldLocked, flag(rec.Locked),
		domain.FieldLockToken, int64(rec.LockToken),
		domain.FieldLockAcquiredAt, ms(rec.LockAcquiredAt),
		domain.FieldTimeout, rec.TimeoutMinutes,
		domain.FieldPayload, rec.Payload,
		domain.FieldItemCount, rec.ItemCount,
		domain.FieldFlags, int(rec.Flags),
	}
}

// encodeUpdate flattens the set fields of upd into HSET field/value pairs.
func encodeUpdate(upd ports.Update) []any {
	var pairs []any
	if upd.Expires != nil {
		pairs = append(pairs, domain.FieldExpires, ms(*upd.Expires))
	}
	if upd.TimeoutMinutes != nil {
		pairs = append(pairs, domain.FieldTimeout, *upd.TimeoutMinutes)
	}
	if upd.Locked != nil {
		pairs = append(pairs, domain.FieldLocked, flag(*upd.Locked))
	}
	if upd.LockToken != nil {
		pairs = append(pairs, domain.FieldLockToken, int64(*upd.LockToken))
	}
	if upd.LockAcquiredAt != nil {
		pairs = append(pairs, domain.FieldLockAcquiredAt, ms(*upd.LockAcquiredAt))
	}
	if upd.ItemCount != nil {
		pairs = append(pairs, domain.FieldItemCount, *upd.ItemCount)
	}
	if upd.Flags != nil {
		pairs = append(pairs, domain.FieldFlags, int(*upd.Flags))
	}
	if upd.SetPayload {
		payload := upd.Payload
		if payload == nil {
			payload = []byte{}
		}
		pairs = append(pairs, domain.FieldPayload, payload)
	}
	return pairs
}

// encodeFilter renders the guard arguments expected by guardScript.
func encodeFilter(f ports.Filter) []any {
	token := ""
	if f.LockToken != nil {
		token = strconv.FormatInt(int64(*f.LockToken), 10)
	}
	before := ""
	if !f.ExpiredBefore.IsZero() {
		before = strconv.FormatInt(ms(f.ExpiredBefore), 10)
	}
	return []any{token, flag(f.Unlocked), before}
}

// decodeRecord rebuilds a record from an HGETALL reply.
func decodeRecord(fields map[string]string) (*domain.Record, error) {
	rec := &domain.Record{
		ID:        fields[domain.FieldID],
		Namespace: fields[domain.FieldNamespace],
		Locked:    fields[domain.FieldLocked] == "1",
		Payload:   []byte(fields[domain.FieldPayload]),
	}

	var err error
	times := []struct {
		field string
		dst   *time.Time
	}{
		{domain.FieldCreated, &rec.Created},
		{domain.FieldExpires, &rec.Expires},
		{domain.FieldLockAcquiredAt, &rec.LockAcquiredAt},
	}
	for _, t := range times {
		if *t.dst, err = fromMS(fields[t.field]); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", t.field, err)
		}
	}

	token, err := strconv.ParseInt(fields[domain.FieldLockToken], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", domain.FieldLockToken, err)
	}
	rec.LockToken = domain.LockToken(token)

	ints := []struct {
		field string
		dst   *int
	}{
		{domain.FieldTimeout, &rec.TimeoutMinutes},
		{domain.FieldItemCount, &rec.ItemCount},
	}
	for _, i := range ints {
		if *i.dst, err = strconv.Atoi(fields[i.field]); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", i.field, err)
		}
	}

	flags, err := strconv.Atoi(fields[domain.FieldFlags])
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", domain.FieldFlags, err)
	}
	rec.Flags = domain.ActionFlags(flags)

	rec.Normalize()
	return rec, nil
}
