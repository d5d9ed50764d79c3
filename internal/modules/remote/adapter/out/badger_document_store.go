package out

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"tether/internal/modules/remote/domain"
	remoteout "tether/internal/modules/remote/port/out"
)

// BadgerDocumentStore keeps documents under doc/{owner}/{collection}/{id}.
type BadgerDocumentStore struct {
	db *badger.DB
}

type storedDocument struct {
	Data         json.RawMessage `json:"data"`
	LastModified int64           `json:"last_modified"`
}

func NewBadgerDocumentStore(db *badger.DB) remoteout.Repository {
	return &BadgerDocumentStore{db: db}
}

// OpenBadger opens a badger database in dir, or in memory when dir is empty.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}

func documentKey(key domain.Key) []byte {
	return []byte("doc/" + key.OwnerID + "/" + key.Collection + "/" + key.ID)
}

func collectionPrefix(ownerID, collection string) []byte {
	return []byte("doc/" + ownerID + "/" + collection + "/")
}

func (s *BadgerDocumentStore) Get(_ context.Context, key domain.Key) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(documentKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := decodeDocument(key, val)
			doc = decoded
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Document{}, fmt.Errorf("%s: %w", key.String(), domain.ErrDocumentNotFound)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *BadgerDocumentStore) Put(_ context.Context, doc domain.Document) error {
	raw, err := json.Marshal(storedDocument{Data: doc.Data, LastModified: doc.LastModified.UnixNano()})
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(documentKey(doc.Key), raw)
	}); err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}

func (s *BadgerDocumentStore) Delete(_ context.Context, key domain.Key) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(documentKey(key)); err != nil {
			return err
		}
		return txn.Delete(documentKey(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s: %w", key.String(), domain.ErrDocumentNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *BadgerDocumentStore) List(_ context.Context, ownerID, collection string, since time.Time) ([]domain.Document, error) {
	prefix := collectionPrefix(ownerID, collection)
	out := make([]domain.Document, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := domain.Key{OwnerID: ownerID, Collection: collection, ID: string(item.Key()[len(prefix):])}
			err := item.Value(func(val []byte) error {
				doc, err := decodeDocument(key, val)
				if err != nil {
					return err
				}
				if doc.LastModified.After(since) {
					out = append(out, doc)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastModified.Before(out[j].LastModified) })
	return out, nil
}

func decodeDocument(key domain.Key, val []byte) (domain.Document, error) {
	var stored storedDocument
	if err := json.Unmarshal(val, &stored); err != nil {
		return domain.Document{}, fmt.Errorf("decode %s: %w", key.String(), err)
	}
	data := make(json.RawMessage, len(stored.Data))
	copy(data, stored.Data)
	return domain.Document{Key: key, Data: data, LastModified: time.Unix(0, stored.LastModified).UTC()}, nil
}
