// Package docstore provides a schemaless document store: JSON documents in
// named collections, addressed by opaque string IDs.
//
// The interface mirrors what the application actually needs from a hosted
// document database: point reads, equality and array-containment queries,
// and atomic add/remove-from-set field updates. Callers never read-modify-
// write a whole document to change a set field; they send a set operation
// and the store applies it atomically, so concurrent togglers cannot
// corrupt the set even when their local view was stale.
package docstore

import "context"

// Doc is a decoded document. The store injects the document ID under the
// "id" key on every read; the key is ignored on writes (the ID lives in its
// own column).
type Doc map[string]any

// Op is a query operator.
type Op string

const (
	// OpEqual matches documents whose field equals the given value.
	OpEqual Op = "=="
	// OpArrayContains matches documents whose array field contains the
	// given element.
	OpArrayContains Op = "array-contains"
)

// Fields describes a partial update: plain values replace the field,
// SetOp values mutate an array field as a set.
type Fields map[string]any

// SetOp is an atomic set mutation on an array field.
type SetOp struct {
	Add   bool   // true = add-to-set, false = remove-from-set
	Value string // set elements are always ID strings in this app
}

// AddToSet returns a Fields value that adds v to an array field if absent.
// Adding an element that is already present is a no-op; the set never
// gains duplicates.
func AddToSet(v string) SetOp { return SetOp{Add: true, Value: v} }

// RemoveFromSet returns a Fields value that removes v from an array field.
// Removing an absent element is a no-op.
func RemoveFromSet(v string) SetOp { return SetOp{Add: false, Value: v} }

// Store is the document-store client interface.
//
// Get and Update return apperror.NotFound when no document exists with the
// given ID. Query returns an empty slice, never nil, when nothing matches.
type Store interface {
	Get(ctx context.Context, collection, id string) (Doc, error)
	// Query returns documents whose field matches value under op.
	Query(ctx context.Context, collection, field string, op Op, value any) ([]Doc, error)
	// List returns every document in the collection in insertion order.
	List(ctx context.Context, collection string) ([]Doc, error)
	// Add stores a new document and returns its generated ID.
	Add(ctx context.Context, collection string, doc Doc) (string, error)
	// Set stores a document at a caller-chosen ID, replacing any existing
	// document there. Used where the ID comes from outside the store, e.g.
	// profile documents keyed by the identity-provider user ID.
	Set(ctx context.Context, collection, id string, doc Doc) error
	// Update applies a partial update atomically in a single statement.
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
}
