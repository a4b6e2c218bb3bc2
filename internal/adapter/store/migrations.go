package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"contractrag/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyDimension     = []byte("dimension")
)

// SchemaInfo stores the schema version and the vector width the index was
// built with.
type SchemaInfo struct {
	Version   int `json:"version"`
	Dimension int `json:"dimension"`
}

// GetSchemaInfo retrieves the current schema info from the database. A zero
// Version means the file has never been written.
func (s *BoltChunkStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}
		if data := b.Get(keySchemaVersion); data != nil {
			if err := json.Unmarshal(data, &info.Version); err != nil {
				return fmt.Errorf("corrupt schema version: %w", err)
			}
		}
		if data := b.Get(keyDimension); data != nil {
			if err := json.Unmarshal(data, &info.Dimension); err != nil {
				return fmt.Errorf("corrupt dimension: %w", err)
			}
		}
		return nil
	})
	return &info, err
}

// SetSchemaInfo stores the schema info in the database.
func (s *BoltChunkStore) SetSchemaInfo(info *SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)

		versionData, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, versionData); err != nil {
			return err
		}

		dimData, err := json.Marshal(info.Dimension)
		if err != nil {
			return err
		}
		return b.Put(keyDimension, dimData)
	})
}

// checkSchema stamps a fresh file and verifies an existing one was built
// with the same schema and dimension.
func (s *BoltChunkStore) checkSchema() error {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return err
	}

	if info.Version == 0 {
		return s.SetSchemaInfo(&SchemaInfo{Version: CurrentSchemaVersion, Dimension: s.dimension})
	}
	if info.Version > CurrentSchemaVersion {
		return fmt.Errorf("index schema version %d is newer than supported version %d", info.Version, CurrentSchemaVersion)
	}
	if info.Dimension != s.dimension {
		return fmt.Errorf("index was built with a different embedding width, rebuild it: %w",
			&domain.DimensionError{Expected: s.dimension, Got: info.Dimension})
	}
	return nil
}
