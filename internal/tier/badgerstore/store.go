// Package badgerstore backs the L2 persistent tier with a badger database.
// Entries survive process restart; expiry rides on badger's native TTL.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	"github.com/talowa/go-tier-cache/config"
	"github.com/talowa/go-tier-cache/internal/tier"
)

const (
	defaultGCInterval = 5 * time.Minute
	gcDiscardRatio    = 0.5
)

type Store struct {
	db     *badger.DB
	cancel context.CancelFunc
}

var _ tier.Store = (*Store)(nil)

func Open(ctx context.Context, cfg *config.BadgerCfg) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger dir %s: %w", cfg.Dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Store{db: db, cancel: cancel}

	interval := cfg.GCInterval
	if interval <= 0 {
		interval = defaultGCInterval
	}
	go s.gcLoop(ctx, interval)

	return s, nil
}

func storageKey(partition, key string) []byte {
	return []byte(partition + "/" + key)
}

func (s *Store) Get(_ context.Context, partition, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storageKey(partition, key))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get: %w", err)
	}
	return payload, true, nil
}

func (s *Store) Set(_ context.Context, partition, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		// already expired, nothing to persist
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(storageKey(partition, key), payload).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, partition, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(storageKey(partition, key))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

func (s *Store) HealthProbe(context.Context) error {
	if s.db.IsClosed() {
		return fmt.Errorf("badger: database is closed")
	}
	return nil
}

func (s *Store) Close() error {
	s.cancel()
	return s.db.Close()
}

// gcLoop reclaims value-log space dropped by TTL expiry and deletes.
func (s *Store) gcLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				err := s.db.RunValueLogGC(gcDiscardRatio)
				if errors.Is(err, badger.ErrNoRewrite) {
					break
				}
				if err != nil {
					log.Debug().Err(err).Msg("badger value log gc")
					break
				}
			}
		}
	}
}
