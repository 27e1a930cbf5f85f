// ABOUTME: Pipeline config repository interface with ETag-based optimistic concurrency.
// ABOUTME: Records carry the encoded document's SHA-256 ETag; every write appends a ULID-keyed change.
package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/pipeconf/pipeline"
)

var (
	// ErrNotFound indicates no pipeline with the requested name exists.
	ErrNotFound = errors.New("pipeline not found")

	// ErrAlreadyExists indicates Create was called for a name already stored.
	ErrAlreadyExists = errors.New("pipeline already exists")

	// ErrPreconditionFailed indicates the If-Match ETag did not match the stored one.
	ErrPreconditionFailed = errors.New("etag does not match the stored pipeline")
)

// Record is a stored pipeline with its concurrency token.
type Record struct {
	Pipeline  *pipeline.Pipeline
	ETag      string
	UpdatedAt time.Time
}

// Action is the kind of write recorded in a pipeline's history.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change is one entry of a pipeline's write history.
type Change struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Action Action    `json:"action"`
	ETag   string    `json:"etag"`
	At     time.Time `json:"at"`
}

// Store persists pipeline configs keyed by name.
type Store interface {
	// List returns every pipeline ordered by name.
	List(ctx context.Context) ([]Record, error)
	// Get returns one pipeline or ErrNotFound.
	Get(ctx context.Context, name string) (Record, error)
	// Create stores a new pipeline or fails with ErrAlreadyExists.
	Create(ctx context.Context, p *pipeline.Pipeline) (Record, error)
	// Put replaces a pipeline whose current ETag equals ifMatch.
	Put(ctx context.Context, p *pipeline.Pipeline, ifMatch string) (Record, error)
	// Delete removes a pipeline. An empty ifMatch skips the precondition.
	Delete(ctx context.Context, name, ifMatch string) error
	// History returns the pipeline's changes, oldest first.
	History(ctx context.Context, name string) ([]Change, error)
	Close() error
}

// ETagOf computes the strong entity tag of an encoded pipeline document.
func ETagOf(doc []byte) string {
	sum := sha256.Sum256(doc)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newChangeID generates a ULID from crypto/rand entropy. IDs minted within
// the same millisecond still sort in creation order.
func newChangeID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// encode returns the document bytes and ETag of a pipeline.
func encode(p *pipeline.Pipeline) ([]byte, string, error) {
	doc, err := pipeline.Encode(p)
	if err != nil {
		return nil, "", err
	}
	return doc, ETagOf(doc), nil
}
