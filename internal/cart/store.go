package cart

import (
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var bucketCarts = []byte("carts")

// Store keeps one serialized cart per storefront session in a bbolt file
type Store struct {
	db *bolt.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open cart store")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCarts)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "init cart bucket")
	}
	return &Store{db: db}, nil
}

// Load returns the session's cart, empty when missing or unreadable
func (s *Store) Load(sessionID string) *Cart {
	var data []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketCarts).Get([]byte(sessionID)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	return Decode(data)
}

// Save writes the whole line array
func (s *Store) Save(sessionID string, c *Cart) error {
	data, err := c.Encode()
	if err != nil {
		return err
	}
	return s.SaveRaw(sessionID, data)
}

// SaveRaw stores already serialized data as is
func (s *Store) SaveRaw(sessionID string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCarts).Put([]byte(sessionID), data)
	})
}

func (s *Store) Delete(sessionID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCarts).Delete([]byte(sessionID))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
