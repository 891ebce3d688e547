package ports

import (
	"context"
	"time"
)

// Document is one record in a watched collection. Fields carries the raw
// document body; CreatedAt is nil until the store has committed a server
// timestamp for the record.
type Document struct {
	ID        string
	Fields    map[string]any
	CreatedAt *time.Time
}

// SnapshotListener receives the full materialized document set of a watched
// collection, not a delta. It is invoked once on subscribe with the current
// contents and then once per change notification.
type SnapshotListener func(docs []Document)

// ErrorListener receives subscription-channel failures (store unreachable,
// stream torn down). The subscription delivers no further snapshots after an
// error; recovery requires a fresh Subscribe.
type ErrorListener func(err error)

// Subscription is a live watch handle. Release stops delivery; it is safe to
// call more than once and returns only after no further callbacks can fire.
type Subscription interface {
	Release()
}

// LiveStore is the shared collection capability: an unordered document set
// that can be watched for changes and appended to. Paths are logical
// collection identifiers such as artifacts/{namespace}/public/data/suggestions.
type LiveStore interface {
	// Subscribe opens exactly one live watch on path. onSnapshot observes
	// every change across every writer, onError observes stream failures.
	Subscribe(ctx context.Context, path string, onSnapshot SnapshotListener, onError ErrorListener) (Subscription, error)
	// Append adds one document. A nil doc.CreatedAt requests the
	// server-assigned commit timestamp; the store never honors a
	// client-supplied creation time.
	Append(ctx context.Context, path string, doc Document) (id string, err error)
}

// SuggestionRepository is the durable half of the composed live store: row
// persistence without change notification.
type SuggestionRepository interface {
	Insert(ctx context.Context, path string, doc Document) (Document, error)
	List(ctx context.Context, path string) ([]Document, error)
}

// ChangeNotifier fans change signals out to every subscriber of a collection
// path. Payloads are advisory; subscribers re-materialize the full set.
type ChangeNotifier interface {
	Publish(ctx context.Context, path string, payload []byte) error
	// Watch delivers one signal per published change until release is
	// called. The errs channel reports a broken notification stream.
	Watch(ctx context.Context, path string) (signals <-chan []byte, errs <-chan error, release func(), err error)
}
