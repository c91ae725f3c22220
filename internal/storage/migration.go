package storage

import (
	"strconv"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var schemaVersionKey = []byte("schema_version")

// Migrate brings the database to the given schema version and makes sure
// the named buckets exist. Opening a database written by a newer schema fails.
func (s *Storage) Migrate(version int, buckets []string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		settings, err := tx.CreateBucketIfNotExists(bktSettings)
		if err != nil {
			return err
		}
		current := 0
		if v := settings.Get(schemaVersionKey); v != nil {
			current, err = strconv.Atoi(string(v))
			if err != nil {
				return errors.Wrap(err, "invalid schema version")
			}
		}
		if current > version {
			return errors.Errorf("database schema %d is newer than %d", current, version)
		}
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return errors.Wrapf(err, "failed to create bucket %s", name)
			}
		}
		if current == version {
			return nil
		}
		return settings.Put(schemaVersionKey, []byte(strconv.Itoa(version)))
	})
}
