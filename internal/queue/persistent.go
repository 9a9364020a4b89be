package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"

	"sigrelay/internal/apperrors"
	"sigrelay/internal/task"
)

// schemaVersion tags the persisted record format so future field additions
// stay forward-compatible, per spec.md §4.4 / §6 ("Persisted state layout").
const schemaVersion = 1

var tasksBucket = []byte("tasks")

// record is the stable, versioned on-disk representation of a Task. Message
// is base64-encoded since it is an opaque byte string and JSON requires
// valid UTF-8 strings.
type record struct {
	SchemaVersion int         `json:"schema_version"`
	ID            string      `json:"id"`
	Message       string      `json:"message"`
	WebhookURL    string      `json:"webhook_url"`
	Status        task.Status `json:"status"`
	Signature     string      `json:"signature"`
	NumRetries    int         `json:"num_retries"`
}

func toRecord(t *task.Task) record {
	return record{
		SchemaVersion: schemaVersion,
		ID:            t.ID,
		Message:       base64.StdEncoding.EncodeToString(t.Message),
		WebhookURL:    t.WebhookURL,
		Status:        t.Status,
		Signature:     t.Signature,
		NumRetries:    t.NumRetries,
	}
}

func fromRecord(r record) (*task.Task, error) {
	msg, err := base64.StdEncoding.DecodeString(r.Message)
	if err != nil {
		return nil, fmt.Errorf("queue: decode message: %w", err)
	}
	return &task.Task{
		ID:         r.ID,
		Message:    msg,
		WebhookURL: r.WebhookURL,
		Status:     r.Status,
		Signature:  r.Signature,
		NumRetries: r.NumRetries,
	}, nil
}

// PersistentQueue is a crash-safe FIFO backed by an embedded ordered KV
// store (go.etcd.io/bbolt), chosen over a client/server SQL database
// because spec.md's Non-goals exclude horizontal scale-out: a single
// embedded file satisfies "survives process restart" without standing up
// external infrastructure. Entries live in one bucket keyed by an
// auto-incrementing sequence number (bbolt's NextSequence), so bucket
// cursor iteration order is FIFO by construction.
//
// A lease does not remove its entry from the bucket — only Ack/AckFailed
// do. If the process dies with a lease outstanding, the entry is simply
// still there on restart: the in-process leased flag that would have
// blocked a second Lease call is gone too, so the task reappears
// head-of-queue exactly as if it had been nacked.
type PersistentQueue struct {
	db *bbolt.DB

	mu     sync.Mutex
	leased bool
}

// OpenPersistentQueue opens (creating if absent) a bbolt file at path and
// ensures the tasks bucket exists.
func OpenPersistentQueue(path string) (*PersistentQueue, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, &apperrors.QueueWriteFailedError{Err: fmt.Errorf("open %s: %w", path, err)}
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tasksBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, &apperrors.QueueWriteFailedError{Err: err}
	}

	return &PersistentQueue{db: db}, nil
}

// Close releases the underlying bbolt file handle.
func (q *PersistentQueue) Close() error {
	return q.db.Close()
}

// Add durably records t at the tail, keyed by the bucket's next sequence
// number.
func (q *PersistentQueue) Add(_ context.Context, t *task.Task) error {
	err := q.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(tasksBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(toRecord(t))
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
	if err != nil {
		return &apperrors.QueueWriteFailedError{Err: err}
	}
	return nil
}

// Lease returns a scoped handle on the head entry, or ok=false if the
// bucket is empty or a lease is already outstanding in this process.
func (q *PersistentQueue) Lease(_ context.Context) (*Lease, bool, error) {
	q.mu.Lock()
	if q.leased {
		q.mu.Unlock()
		return emptyLease(), false, nil
	}

	var key []byte
	var t *task.Task

	err := q.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(tasksBucket).Cursor()
		k, v := c.First()
		if k == nil {
			return nil
		}
		key = append([]byte(nil), k...)

		var r record
		if err := json.Unmarshal(v, &r); err != nil {
			return fmt.Errorf("queue: corrupt record at key %x: %w", k, err)
		}
		decoded, err := fromRecord(r)
		if err != nil {
			return err
		}
		t = decoded
		return nil
	})
	if err != nil {
		q.mu.Unlock()
		return nil, false, err
	}
	if key == nil {
		q.mu.Unlock()
		return emptyLease(), false, nil
	}

	q.leased = true
	q.mu.Unlock()

	lease := newLease(t,
		func() error { return q.removeAndUnlease(key) },
		func() error { return q.removeAndUnlease(key) },
		func() error { return q.unlease() },
	)
	return lease, true, nil
}

func (q *PersistentQueue) removeAndUnlease(key []byte) error {
	err := q.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(tasksBucket).Delete(key)
	})
	q.mu.Lock()
	q.leased = false
	q.mu.Unlock()
	if err != nil {
		return &apperrors.QueueWriteFailedError{Err: err}
	}
	return nil
}

func (q *PersistentQueue) unlease() error {
	q.mu.Lock()
	q.leased = false
	q.mu.Unlock()
	return nil
}

// Len reports the number of unacked entries in the bucket.
func (q *PersistentQueue) Len() int {
	var n int
	_ = q.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(tasksBucket).Stats().KeyN
		return nil
	})
	return n
}

func seqKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%020d", seq))
}
