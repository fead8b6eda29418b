package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketDevices  = []byte("devices")
	bucketBindings = []byte("bindings")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketDevices, bucketBindings} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func bucket(tx *bolt.Tx, name []byte) (*bolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("bucket %q not found", name)
	}
	return b, nil
}

func (s *BoltStore) SaveDevice(dev *Device) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, bucketDevices)
		if err != nil {
			return err
		}
		data, err := json.Marshal(dev)
		if err != nil {
			return err
		}
		return b.Put([]byte(dev.IEEEAddress), data)
	})
}

func (s *BoltStore) GetDevice(ieee string) (*Device, error) {
	var dev Device
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, bucketDevices)
		if err != nil {
			return err
		}
		data := b.Get([]byte(ieee))
		if data == nil {
			return fmt.Errorf("device %s: %w", ieee, ErrNotFound)
		}
		return json.Unmarshal(data, &dev)
	})
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

// DeleteDevice removes the device and every binding it takes part in.
func (s *BoltStore) DeleteDevice(ieee string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, bucketDevices)
		if err != nil {
			return err
		}
		if err := b.Delete([]byte(ieee)); err != nil {
			return err
		}

		bb, err := bucket(tx, bucketBindings)
		if err != nil {
			return err
		}
		var stale [][]byte
		err = bb.ForEach(func(k, v []byte) error {
			var bind Binding
			if err := json.Unmarshal(v, &bind); err != nil {
				return err
			}
			if bind.SourceIEEE == ieee || bind.TargetIEEE == ieee {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := bb.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) ListDevices() ([]*Device, error) {
	var devices []*Device
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if b == nil {
			return nil // no bucket = no devices
		}
		devices = make([]*Device, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var dev Device
			if err := json.Unmarshal(v, &dev); err != nil {
				return err
			}
			devices = append(devices, &dev)
			return nil
		})
	})
	return devices, err
}

func (s *BoltStore) UpdateDevice(ieee string, fn func(dev *Device) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, bucketDevices)
		if err != nil {
			return err
		}
		data := b.Get([]byte(ieee))
		if data == nil {
			return fmt.Errorf("device %s: %w", ieee, ErrNotFound)
		}
		var dev Device
		if err := json.Unmarshal(data, &dev); err != nil {
			return err
		}
		if err := fn(&dev); err != nil {
			return err
		}
		dev.IEEEAddress = ieee
		updated, err := json.Marshal(&dev)
		if err != nil {
			return err
		}
		return b.Put([]byte(ieee), updated)
	})
}

func (s *BoltStore) SaveBinding(bind *Binding) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, bucketBindings)
		if err != nil {
			return err
		}
		data, err := json.Marshal(bind)
		if err != nil {
			return err
		}
		return b.Put(bind.key(), data)
	})
}

func (s *BoltStore) DeleteBinding(bind *Binding) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, bucketBindings)
		if err != nil {
			return err
		}
		k := bind.key()
		if b.Get(k) == nil {
			return fmt.Errorf("binding %s: %w", k, ErrNotFound)
		}
		return b.Delete(k)
	})
}

// ListBindings returns the bindings of one source device, or all bindings
// when sourceIEEE is empty.
func (s *BoltStore) ListBindings(sourceIEEE string) ([]*Binding, error) {
	bindings := []*Binding{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, bucketBindings)
		if err != nil {
			return err
		}
		c := b.Cursor()
		prefix := []byte(sourceIEEE + "/")
		var k, v []byte
		if sourceIEEE == "" {
			k, v = c.First()
		} else {
			k, v = c.Seek(prefix)
		}
		for ; k != nil; k, v = c.Next() {
			if sourceIEEE != "" && !bytes.HasPrefix(k, prefix) {
				break
			}
			var bind Binding
			if err := json.Unmarshal(v, &bind); err != nil {
				return err
			}
			bindings = append(bindings, &bind)
		}
		return nil
	})
	return bindings, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
