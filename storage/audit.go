package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"mailgate/models"
)

// AuditLog is an append-only record of outbound sends and injection
// signals, one JSON document per key.
type AuditLog struct {
	db  *bbolt.DB
	now func() time.Time
}

// OpenAuditLog opens the audit database at path
func OpenAuditLog(path string) (*AuditLog, error) {
	db, err := InitDB(path)
	if err != nil {
		return nil, err
	}
	return &AuditLog{db: db, now: time.Now}, nil
}

// Close releases the database file
func (a *AuditLog) Close() error {
	return a.db.Close()
}

// RecordSend appends a send attempt. Seq and Time are filled in.
func (a *AuditLog) RecordSend(rec models.SendRecord) error {
	rec.Time = a.now().UTC()
	return a.append(SendsBucket, func(seq uint64) interface{} {
		rec.Seq = seq
		return rec
	})
}

// RecordSignals appends a detector hit. Seq and Time are filled in.
func (a *AuditLog) RecordSignals(rec models.SignalRecord) error {
	rec.Time = a.now().UTC()
	return a.append(SignalsBucket, func(seq uint64) interface{} {
		rec.Seq = seq
		return rec
	})
}

// RecentSends returns up to n send records, newest first
func (a *AuditLog) RecentSends(n int) ([]models.SendRecord, error) {
	var out []models.SendRecord
	err := a.recent(SendsBucket, n, func(v []byte) error {
		var rec models.SendRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// RecentSignals returns up to n signal records, newest first
func (a *AuditLog) RecentSignals(n int) ([]models.SignalRecord, error) {
	var out []models.SignalRecord
	err := a.recent(SignalsBucket, n, func(v []byte) error {
		var rec models.SignalRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (a *AuditLog) append(bucket []byte, build func(seq uint64) interface{}) error {
	return a.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence in %s: %w", bucket, err)
		}

		data, err := json.Marshal(build(seq))
		if err != nil {
			return fmt.Errorf("encode %s record: %w", bucket, err)
		}
		return b.Put(seqKey(seq), data)
	})
}

func (a *AuditLog) recent(bucket []byte, n int, fn func([]byte) error) error {
	if n <= 0 {
		return nil
	}
	return a.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		count := 0
		for k, v := c.Last(); k != nil && count < n; k, v = c.Prev() {
			if err := fn(v); err != nil {
				return fmt.Errorf("decode %s record %d: %w", bucket, binary.BigEndian.Uint64(k), err)
			}
			count++
		}
		return nil
	})
}

// Big-endian keys sort in insertion order under bbolt's byte ordering.
func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
