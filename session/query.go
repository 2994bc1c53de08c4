package session

import (
	"context"
	"io"

	"gocloud.dev/docstore"
)

// inOp is the docstore operator for membership in a list of values.
const inOp = "in"

// includeBatchSize caps the number of keys sent in one "in" filter. Some
// providers (Firestore among them) reject larger lists.
const includeBatchSize = 10

// First runs q and returns its first document, or nil if it matched nothing.
func First[D any](ctx context.Context, s *Session, q *docstore.Query) (*D, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	iter := q.Limit(1).Get(ctx)
	defer iter.Stop()

	doc := new(D)
	err := iter.Next(ctx, doc)
	if err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return doc, nil
}

// Any reports whether q matches at least one document.
func Any(ctx context.Context, s *Session, q *docstore.Query) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	iter := q.Limit(1).Get(ctx, KeyField)
	defer iter.Stop()

	err := iter.Next(ctx, map[string]interface{}{})
	if err == io.EOF {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

// All runs q and returns every matching document.
func All[D any](ctx context.Context, s *Session, q *docstore.Query) ([]*D, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return collect[D](ctx, q)
}

// Include fetches the documents of the named collection whose keys are in
// keys. Duplicate keys are fetched once and keys are sent in batches rather
// than one lookup per key. Keys with no document are skipped.
func Include[D any](ctx context.Context, s *Session, name Name, keys []string) ([]*D, error) {
	unique := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}
	if len(unique) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	docs := make([]*D, 0, len(unique))
	for start := 0; start < len(unique); start += includeBatchSize {
		end := min(start+includeBatchSize, len(unique))
		q := s.Query(name).Where(KeyField, inOp, unique[start:end])
		batch, err := collect[D](ctx, q)
		if err != nil {
			return nil, err
		}
		docs = append(docs, batch...)
	}
	return docs, nil
}

func collect[D any](ctx context.Context, q *docstore.Query) ([]*D, error) {
	iter := q.Get(ctx)
	defer iter.Stop()

	var docs []*D
	for {
		doc := new(D)
		err := iter.Next(ctx, doc)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
