// Package checkpoint persists optimization state (parameter vectors
// and the current likelihood) in a bolt database, so long model fits
// survive interruption.
package checkpoint

import (
	"encoding/json"
	"time"

	"github.com/op/go-logging"
	bolt "go.etcd.io/bbolt"
)

// log is the package logging variable.
var log = logging.MustGetLogger("checkpoint")

// bucket is the bolt bucket holding all checkpoints.
var bucket = []byte("checkpoints")

// Record is a single stored optimization state.
type Record struct {
	Parameters map[string]float64
	Likelihood float64
	Iter       int
	Final      bool
}

// Saver writes records for one optimization run, identified by key,
// at most once per interval.
type Saver struct {
	db       *bolt.DB
	key      []byte
	last     time.Time
	interval time.Duration
}

// NewSaver creates a Saver. A nil db disables all operations.
func NewSaver(db *bolt.DB, key []byte, interval time.Duration) *Saver {
	return &Saver{db: db, key: key, interval: interval}
}

// Due reports whether enough time has passed since the last save.
// A nil or disabled saver is never due.
func (s *Saver) Due() bool {
	if s == nil || s.db == nil {
		return false
	}
	return time.Since(s.last) > s.interval
}

// Save stores a record under the saver's key.
func (s *Saver) Save(rec *Record) error {
	if s == nil || s.db == nil {
		return nil
	}
	// even if saving fails we do not want to retry immediately
	s.last = time.Now()
	data, err := json.Marshal(rec)
	if err != nil {
		log.Error("error serializing checkpoint: ", err)
		return err
	}
	err = put(s.db, s.key, data)
	if err != nil {
		log.Error("error saving checkpoint: ", err)
	}
	return err
}

// Load returns the stored record for the saver's key, or nil if there
// is none.
func (s *Saver) Load() (*Record, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	data, err := get(s.db, s.key)
	if err != nil || data == nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if len(rec.Parameters) == 0 {
		return nil, nil
	}
	if rec.Final {
		log.Noticef("found finished optimization checkpoint (iter=%v, lnL=%v)", rec.Iter, rec.Likelihood)
	} else {
		log.Noticef("found unfinished optimization checkpoint (iter=%v, lnL=%v)", rec.Iter, rec.Likelihood)
	}
	return &rec, nil
}

func put(db *bolt.DB, key, data []byte) error {
	if db == nil {
		return nil
	}
	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func get(db *bolt.DB, key []byte) ([]byte, error) {
	if db == nil {
		return nil, nil
	}
	var data []byte
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get(key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
