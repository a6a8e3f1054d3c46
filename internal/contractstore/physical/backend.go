// Package physical defines the document backend interface for contract
// storage and the registry backends add themselves to.
package physical

import (
	"context"
	"slices"
	"strings"
	"time"

	arcerrors "github.com/gezibash/arc-contract/pkg/errors"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = arcerrors.New("document not found", arcerrors.ErrNotFound)

	// ErrVersionConflict indicates a conditional write saw a different
	// stored version than the caller expected.
	ErrVersionConflict = arcerrors.New("document version conflict", arcerrors.ErrConflict)

	// ErrClosed indicates the backend has been closed.
	ErrClosed = arcerrors.New("backend closed", arcerrors.ErrClosed)
)

// Index carries the fields a backend may filter on without decoding Data.
type Index struct {
	Status string `json:"status"`
	// Members are the active members.
	Members []string `json:"members"`
	// Participants is every participant the contract references: active
	// and revoked members plus offering providers.
	Participants []string `json:"participants"`
	Offerings    []string `json:"offerings"`
}

// Document is one stored contract. Data is opaque to the backend.
type Document struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Data      []byte    `json:"data"`
	Index     Index     `json:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Filter selects documents. Zero fields do not filter.
type Filter struct {
	Status        string
	ExcludeStatus string
	Participant   string
	// Member refines Participant: true keeps contracts where Participant is
	// an active member, false keeps those where it is not. When nil any
	// reference to Participant matches.
	Member   *bool
	Offering string
	Limit    int
}

// Stats contains storage statistics.
type Stats struct {
	Documents   int64
	BackendType string
}

// Backend is the physical document store. Implementations must be safe for
// concurrent use.
//
// Put is a compare-and-set: with expectedVersion 0 the document must not
// exist yet, otherwise the stored version must equal expectedVersion. On
// success the stored version is expectedVersion+1 and doc.Version is set to
// it. A mismatch returns ErrVersionConflict.
type Backend interface {
	Get(ctx context.Context, id string) (*Document, error)
	Put(ctx context.Context, doc *Document, expectedVersion int64) error
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, f *Filter) ([]*Document, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Matches reports whether doc passes f. Backends that cannot push a filter
// down to their query language apply it with Matches.
func Matches(doc *Document, f *Filter) bool {
	if f == nil {
		return true
	}
	ix := doc.Index
	if f.Status != "" && ix.Status != f.Status {
		return false
	}
	if f.ExcludeStatus != "" && ix.Status == f.ExcludeStatus {
		return false
	}
	if f.Offering != "" && !slices.Contains(ix.Offerings, f.Offering) {
		return false
	}
	if f.Participant != "" {
		switch {
		case f.Member == nil:
			if !slices.Contains(ix.Participants, f.Participant) && !slices.Contains(ix.Members, f.Participant) {
				return false
			}
		case *f.Member != slices.Contains(ix.Members, f.Participant):
			return false
		}
	}
	return true
}

// Limit truncates docs to f.Limit when set.
func Limit(docs []*Document, f *Filter) []*Document {
	if f != nil && f.Limit > 0 && len(docs) > f.Limit {
		return docs[:f.Limit]
	}
	return docs
}

// SortByID orders docs by id so every backend lists deterministically.
func SortByID(docs []*Document) {
	slices.SortFunc(docs, func(a, b *Document) int { return strings.Compare(a.ID, b.ID) })
}

// Clone returns a copy of doc that shares no slices with it.
func (d *Document) Clone() *Document {
	out := *d
	out.Data = slices.Clone(d.Data)
	out.Index.Members = slices.Clone(d.Index.Members)
	out.Index.Participants = slices.Clone(d.Index.Participants)
	out.Index.Offerings = slices.Clone(d.Index.Offerings)
	return &out
}
