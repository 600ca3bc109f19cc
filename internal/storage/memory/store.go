// Package memory is an in-process implementation of storage.Store used by
// tests and single-process development setups.
package memory

import (
	"sync"

	"github.com/cuongbtq/helpdesk-be/internal/storage"
)

// Store keeps every record in maps guarded by one mutex
type Store struct {
	mu            sync.Mutex
	jobs          map[string]*jobRecord
	webhooks      map[string]*webhookRecord
	deliveries    []*deliveryRecord
	notifications map[string]*notificationRecord
	seq           int64
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store
func New() *Store {
	return &Store{
		jobs:          make(map[string]*jobRecord),
		webhooks:      make(map[string]*webhookRecord),
		notifications: make(map[string]*notificationRecord),
	}
}

// next returns a monotonically increasing insertion number used to break
// timestamp ties deterministically.
func (s *Store) next() int64 {
	s.seq++
	return s.seq
}
