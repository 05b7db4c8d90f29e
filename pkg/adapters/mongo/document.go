package mongo

import (
	"time"

	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/ports"
	"go.mongodb.org/mongo-driver/bson"
)

// document is the persisted shape of a record. Field names are the public document contract.
type document struct {
	ID             string    `bson:"id"`
	Namespace      string    `bson:"namespace"`
	Created        time.Time `bson:"created"`
	Expires        time.Time `bson:"expires"`
	Locked         bool      `bson:"lock_held"`
	LockToken      int64     `bson:"lock_token"`
	LockAcquiredAt time.Time `bson:"lock_acquired_at"`
	TimeoutMinutes int       `bson:"timeout_minutes"`
	Payload        []byte    `bson:"payload"`
	ItemCount      int       `bson:"payload_item_count"`
	Flags          int       `bson:"action_flags"`
}

func toDocument(rec *domain.Record) document {
	payload := rec.Payload
	if payload == nil {
		payload = []byte{}
	}
	return document{
		ID:             rec.ID,
		Namespace:      rec.Namespace,
		Created:        rec.Created,
		Expires:        rec.Expires,
		Locked:         rec.Locked,
		LockToken:      int64(rec.LockToken),
		LockAcquiredAt: rec.LockAcquiredAt,
		TimeoutMinutes: rec.TimeoutMinutes,
		Payload:        payload,
		ItemCount:      rec.ItemCount,
		Flags:          int(rec.Flags),
	}
}

// toRecord converts a decoded document back into a record.
// The driver hands dates back in UTC; Normalize brings them to local time.
func (d document) toRecord() *domain.Record {
	rec := &domain.Record{
		ID:             d.ID,
		Namespace:      d.Namespace,
		Created:        d.Created,
		Expires:        d.Expires,
		Locked:         d.Locked,
		LockToken:      domain.LockToken(d.LockToken),
		LockAcquiredAt: d.LockAcquiredAt,
		TimeoutMinutes: d.TimeoutMinutes,
		Payload:        d.Payload,
		ItemCount:      d.ItemCount,
		Flags:          domain.ActionFlags(d.Flags),
	}
	rec.Normalize()
	return rec
}

func keyFilter(k domain.Key) bson.D {
	return bson.D{
		{Key: domain.FieldID, Value: k.ID},
		{Key: domain.FieldNamespace, Value: k.Namespace},
	}
}

// buildFilter renders a ports.Filter as a query document.
func buildFilter(f ports.Filter) bson.D {
	q := keyFilter(f.Key)
	if f.LockToken != nil {
		q = append(q, bson.E{Key: domain.FieldLockToken, Value: int64(*f.LockToken)})
	}
	if f.Unlocked {
		q = append(q, bson.E{Key: domain.FieldLocked, Value: false})
	}
	if !f.ExpiredBefore.IsZero() {
		q = append(q, bson.E{Key: domain.FieldExpires, Value: bson.D{{Key: "$lt", Value: f.ExpiredBefore}}})
	}
	return q
}

// buildUpdate renders a ports.Update as a $set document.
func buildUpdate(upd ports.Update) bson.D {
	var set bson.D
	if upd.Expires != nil {
		set = append(set, bson.E{Key: domain.FieldExpires, Value: *upd.Expires})
	}
	if upd.TimeoutMinutes != nil {
		set = append(set, bson.E{Key: domain.FieldTimeout, Value: *upd.TimeoutMinutes})
	}
	if upd.Locked != nil {
		set = append(set, bson.E{Key: domain.FieldLocked, Value: *upd.Locked})
	}
	if upd.LockToken != nil {
		set = append(set, bson.E{Key: domain.FieldLockToken, Value: int64(*upd.LockToken)})
	}
	if upd.LockAcquiredAt != nil {
		set = append(set, bson.E{Key: domain.FieldLockAcquiredAt, Value: *upd.LockAcquiredAt})
	}
	if upd.ItemCount != nil {
		set = append(set, bson.E{Key: domain.FieldItemCount, Value: *upd.ItemCount})
	}
	if upd.Flags != nil {
		set = append(set, bson.E{Key: domain.FieldFlags, Value: int(*upd.Flags)})
	}
	if upd.SetPayload {
		payload := upd.Payload
		if payload == nil {
			payload = []byte{}
		}
		set = append(set, bson.E{Key: domain.FieldPayload, Value: payload})
	}
	return bson.D{{Key: "$set", Value: set}}
}
