package main

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

var seenBucket = []byte("imported")

// importStamp records where and when a transaction id was first imported.
type importStamp struct {
	Source     string
	ImportedAt time.Time
}

// seenDB remembers every transaction id ever imported, keyed by the
// content-derived id. The master file can be edited or rows purged, but a
// re-import of the same export still cannot resurrect rows as duplicates.
type seenDB struct {
	db *bolt.DB
}

func openSeenDB(path string) (*seenDB, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open import db %q", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(seenBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create bucket")
	}
	return &seenDB{db: db}, nil
}

func (s *seenDB) Close() error { return s.db.Close() }

// filterNew drops records whose ids have been imported before.
func (s *seenDB) filterNew(recs []Record) ([]Record, error) {
	fresh := recs[:0]
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(seenBucket)
		for _, r := range recs {
			if b.Get([]byte(r.ID)) == nil {
				fresh = append(fresh, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan import db")
	}
	return fresh, nil
}

// markSeen stamps the given records as imported.
func (s *seenDB) markSeen(recs []Record, source string) error {
	mark := importStamp{Source: source, ImportedAt: time.Now().UTC()}
	var val bytes.Buffer
	if err := gob.NewEncoder(&val).Encode(mark); err != nil {
		return errors.Wrap(err, "encode import stamp")
	}
	return errors.Wrap(s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(seenBucket)
		for _, r := range recs {
			if err := b.Put([]byte(r.ID), val.Bytes()); err != nil {
				return err
			}
		}
		return nil
	}), "write import db")
}
