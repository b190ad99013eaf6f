package store

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/rotisserie/eris"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store on Cloud Firestore. Each collection maps
// to a Firestore collection and each key to a document ID.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestore creates a Firestore client for projectID.
func NewFirestore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, eris.New("firestore: project id must be provided")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, eris.Wrap(err, "firestore: create client")
	}
	return &FirestoreStore{client: client}, nil
}

// Migrate is a no-op; Firestore collections are created on first write.
func (s *FirestoreStore) Migrate(context.Context) error { return nil }

func (s *FirestoreStore) Close() error {
	return eris.Wrap(s.client.Close(), "firestore: close")
}

func (s *FirestoreStore) Get(ctx context.Context, collection, key string) ([]byte, bool, error) {
	snap, err := s.client.Collection(collection).Doc(docID(key)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "firestore: get %s/%s", collection, key)
	}
	body, err := json.Marshal(snap.Data())
	if err != nil {
		return nil, false, eris.Wrapf(err, "firestore: encode %s/%s", collection, key)
	}
	return body, true, nil
}

func (s *FirestoreStore) Put(ctx context.Context, collection, key string, doc []byte) error {
	fields, err := decodeFields(doc)
	if err != nil {
		return eris.Wrapf(err, "firestore: decode %s/%s", collection, key)
	}
	_, err = s.client.Collection(collection).Doc(docID(key)).Set(ctx, fields)
	return eris.Wrapf(err, "firestore: put %s/%s", collection, key)
}

func (s *FirestoreStore) Patch(ctx context.Context, collection, key string, fields []byte) (bool, error) {
	updates, err := firestoreUpdates(fields)
	if err != nil {
		return false, eris.Wrapf(err, "firestore: decode %s/%s", collection, key)
	}
	_, err = s.client.Collection(collection).Doc(docID(key)).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "firestore: patch %s/%s", collection, key)
	}
	return true, nil
}

// firestoreUpdates turns a patch into one top-level Update per field, so a
// nested map replaces the stored one instead of merging into it.
func firestoreUpdates(fields []byte) ([]firestore.Update, error) {
	_, keys, err := patchFields(fields)
	if err != nil {
		return nil, err
	}
	values, err := decodeFields(fields)
	if err != nil {
		return nil, err
	}
	updates := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		updates = append(updates, firestore.Update{Path: k, Value: values[k]})
	}
	return updates, nil
}

func (s *FirestoreStore) Find(ctx context.Context, collection string, q Query) ([][]byte, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	query := s.client.Collection(collection).Query
	for _, k := range whereKeys(q) {
		query = query.Where(k, "==", q.Where[k])
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out [][]byte
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "firestore: find %s", collection)
		}
		body, err := json.Marshal(snap.Data())
		if err != nil {
			return nil, eris.Wrapf(err, "firestore: encode %s/%s", collection, snap.Ref.ID)
		}
		out = append(out, body)
	}
	return out, nil
}

// docID escapes characters Firestore reserves in document IDs.
func docID(key string) string {
	return strings.ReplaceAll(key, "/", "%2F")
}

// decodeFields turns a JSON document into Firestore field values, keeping
// integral numbers as int64 so equality filters match.
func decodeFields(doc []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		fields[k] = normalizeNumbers(v)
	}
	return fields, nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, child := range t {
			t[k] = normalizeNumbers(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = normalizeNumbers(child)
		}
		return t
	default:
		return v
	}
}
