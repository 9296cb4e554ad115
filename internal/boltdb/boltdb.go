// Package boltdb keeps the job history in a bbolt database file.
package boltdb

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/alanbriolat/connect-archiver/reconstruct"
)

var Buckets = struct {
	Metadata []byte
	Jobs     []byte
}{
	Metadata: []byte("__metadata__"),
	Jobs:     []byte("jobs"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

// openTimeout bounds the wait for another process holding the database file.
const openTimeout = time.Second

type Database interface {
	Close() error
	ListRecords() ([]reconstruct.JobRecord, error)
	DeleteRecord(url string) error

	reconstruct.History
}

type database struct {
	*bbolt.DB
}

func New(path string) (_ Database, err error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) (err error) {
		// Ensure buckets exist
		var metadata *bbolt.Bucket
		if metadata, err = tx.CreateBucketIfNotExists(Buckets.Metadata); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.Jobs); err != nil {
			return err
		}

		// Get the current version of the database
		var version int
		if versionBytes := metadata.Get(MetadataKeys.Version); versionBytes == nil {
			version = 0
		} else if err = json.Unmarshal(versionBytes, &version); err != nil {
			return err
		}
		if version > currentVersion {
			return fmt.Errorf("history database version %d is newer than supported version %d", version, currentVersion)
		}

		// Set the current version of the database
		if versionBytes, err := json.Marshal(currentVersion); err != nil {
			return err
		} else if err = metadata.Put(MetadataKeys.Version, versionBytes); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &database{db}, nil
}

func (d database) GetRecord(url string) (record *reconstruct.JobRecord, err error) {
	err = d.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(Buckets.Jobs).Get([]byte(url))
		if data == nil {
			return nil
		}
		record = &reconstruct.JobRecord{}
		return json.Unmarshal(data, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (d database) PutRecord(record *reconstruct.JobRecord) error {
	if data, err := json.Marshal(record); err != nil {
		return err
	} else {
		return d.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(Buckets.Jobs).Put([]byte(record.URL), data)
		})
	}
}

// ListRecords returns every record, ordered by URL.
func (d database) ListRecords() (records []reconstruct.JobRecord, err error) {
	err = d.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Jobs)
		return bucket.ForEach(func(k, v []byte) error {
			var record reconstruct.JobRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			} else {
				records = append(records, record)
				return nil
			}
		})
	})
	if err != nil {
		return nil, err
	} else {
		return records, nil
	}
}

func (d database) DeleteRecord(url string) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Jobs).Delete([]byte(url))
	})
}
