// Package index implements the index store (C7): vector collections for
// language and vision embeddings, a stemmed full-text index over entity
// columns, and a typed entity graph with contains/with relations. All
// three are backed by one embedded buntdb database, giving the whole
// store ACID transactions for the entity graph's root-insertion protocol
// without a bespoke write-ahead log.
package index

import (
	"context"

	"github.com/tidwall/buntdb"

	cberrors "github.com/standardbeagle/contentbase/internal/errors"
	"github.com/standardbeagle/contentbase/internal/types"
)

const (
	CollectionLanguage = "language"
	CollectionVision   = "vision"
)

// Store is the C7 hybrid index: vector collections + full-text + graph.
type Store struct {
	db          *buntdb.DB
	collections map[string]*vectorCollection
	fulltext    *fulltextIndex
	graph       *graph
}

// Open opens (creating if absent) the buntdb file at path. Pass ":memory:"
// for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, cberrors.Transientf("index.Open", err)
	}
	s := &Store{
		db: db,
		collections: map[string]*vectorCollection{
			CollectionLanguage: newVectorCollection(db, CollectionLanguage),
			CollectionVision:   newVectorCollection(db, CollectionVision),
		},
		fulltext: newFulltextIndex(db),
		graph:    newGraph(db),
	}
	for _, c := range s.collections {
		if err := c.load(); err != nil {
			_ = db.Close()
			return nil, cberrors.Transientf("index.Open", err)
		}
	}
	if err := s.fulltext.load(); err != nil {
		_ = db.Close()
		return nil, cberrors.Transientf("index.Open", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) collection(name string) (*vectorCollection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, cberrors.NewNotFound("index.collection", name)
	}
	return c, nil
}

// UpsertVector satisfies tasks.VectorIndexer, returning the point's id so
// the caller can give a matching graph leaf the same identity.
func (s *Store) UpsertVector(ctx context.Context, collection string, payload types.VectorPayload, vector []float32) (string, error) {
	c, err := s.collection(collection)
	if err != nil {
		return "", err
	}
	return c.Upsert(ctx, payload, vector)
}

// SearchVectors runs a k-NN scan against collection.
func (s *Store) SearchVectors(ctx context.Context, collection string, query []float32, k int, filter VectorFilter) ([]ScoredPoint, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	return c.Search(ctx, query, k, filter)
}

// SearchFullText runs a multi-token score search across columns.
func (s *Store) SearchFullText(ctx context.Context, tokens []string, columns []FullTextColumn) ([]FullTextHit, error) {
	return s.fulltext.Search(ctx, tokens, columns)
}

// Highlight returns the best snippet for one entity's column.
func (s *Store) Highlight(entity types.EntityID, column FullTextColumn, tokens []string) (string, float64) {
	return s.fulltext.Highlight(entity, column, tokens)
}

// IndexText indexes one entity's column text into the full-text index.
// column is a plain string (e.g. "text.data") so callers outside this
// package, such as the task registry's narrow EntityIndexer capability
// interface, don't need to import FullTextColumn.
func (s *Store) IndexText(ctx context.Context, entity types.EntityID, column string, text string) error {
	return s.fulltext.IndexDocument(ctx, entity, FullTextColumn(column), text)
}

// InsertRoot delegates to the entity graph's transactional root-insertion
// protocol.
func (s *Store) InsertRoot(ctx context.Context, build func(tx *Tx) (types.EntityID, error)) (types.EntityID, error) {
	return s.graph.InsertRoot(ctx, build)
}

// EnsureRoot creates a file's content root the first time any task asks
// for it (idempotent), relating it to its with-payload edge in the same
// transaction.
func (s *Store) EnsureRoot(ctx context.Context, table types.EntityTable, fileID types.FileIdentifier) (types.EntityID, error) {
	rootID := types.EntityID{Table: table, ID: string(fileID)}
	exists, err := s.graph.NodeExists(ctx, rootID)
	if err != nil {
		return types.EntityID{}, err
	}
	if exists {
		return rootID, nil
	}
	return s.graph.InsertRoot(ctx, func(tx *Tx) (types.EntityID, error) {
		root, err := tx.CreateRoot(table, string(fileID), nil, nil)
		if err != nil {
			return types.EntityID{}, err
		}
		if err := tx.RelateWithPayload(root, fileID, nil); err != nil {
			return types.EntityID{}, err
		}
		return root, nil
	})
}

// AddLeaf creates one leaf node and attaches it under root via contains,
// both inside a single transaction.
func (s *Store) AddLeaf(ctx context.Context, root types.EntityID, table types.EntityTable, leafID string, fields map[string]string) (types.EntityID, error) {
	return s.graph.InsertRoot(ctx, func(tx *Tx) (types.EntityID, error) {
		leaf, err := tx.CreateLeaf(table, leafID, fields)
		if err != nil {
			return types.EntityID{}, err
		}
		if err := tx.AddChild(root, leaf); err != nil {
			return types.EntityID{}, err
		}
		return leaf, nil
	})
}

// Payload resolves a root's with-payload entity and optional URL.
func (s *Store) Payload(ctx context.Context, root types.EntityID) (*types.EntityID, *string, error) {
	return s.graph.Payload(ctx, root)
}

// ParentOf resolves the single contains-parent of child, or nil at a root.
func (s *Store) ParentOf(ctx context.Context, child types.EntityID) (*types.EntityID, error) {
	return s.graph.ParentOf(ctx, child)
}

// AncestorOrigin walks ParentOf until it reaches an indexable ancestor (or
// a root), returning the full chain from hit to that origin inclusive.
func (s *Store) AncestorOrigin(ctx context.Context, hit types.EntityID) (origin types.EntityID, chain []types.EntityID, err error) {
	cur := hit
	chain = append(chain, cur)
	for {
		if cur.Table.IsIndexableAncestor() {
			return cur, chain, nil
		}
		parent, perr := s.graph.ParentOf(ctx, cur)
		if perr != nil {
			return types.EntityID{}, nil, perr
		}
		if parent == nil {
			return cur, chain, nil // no parent and not flagged indexable: treat as its own origin
		}
		cur = *parent
		chain = append(chain, cur)
	}
}

// VectorAt returns the vector closest in time to atMs among fileID's
// points in collection, or nil if none carry a timestamp.
func (s *Store) VectorAt(ctx context.Context, collection string, fileID types.FileIdentifier, atMs int64) ([]float32, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	return c.VectorForFileAt(fileID, atMs), nil
}

// RootOf resolves the true content root above entity, for content-kind
// filtering (see graph.RootOf).
func (s *Store) RootOf(ctx context.Context, entity types.EntityID) (types.EntityID, error) {
	return s.graph.RootOf(ctx, entity)
}

// DeleteByFileIdentifier purges every vector point, full-text document,
// and graph subtree belonging to fileID, used by the facade's delete
// operation (C9).
func (s *Store) DeleteByFileIdentifier(ctx context.Context, fileID types.FileIdentifier) error {
	for _, c := range s.collections {
		if _, err := c.DeleteByFilter(ctx, func(p types.VectorPayload) bool { return p.FileIdentifier == fileID }); err != nil {
			return err
		}
	}

	roots, err := s.graph.RootsWithFileIdentifier(ctx, fileID)
	if err != nil {
		return err
	}
	for _, root := range roots {
		if err := s.removeSubtreeFullText(ctx, root); err != nil {
			return err
		}
		if err := s.graph.DeleteRoot(ctx, root); err != nil {
			return cberrors.Transientf("index.DeleteByFileIdentifier", err)
		}
	}
	return nil
}

// removeSubtreeFullText drops every full-text column for root and its
// descendants before the graph subtree itself is deleted.
func (s *Store) removeSubtreeFullText(ctx context.Context, root types.EntityID) error {
	var walk func(types.EntityID) error
	walk = func(id types.EntityID) error {
		if err := s.fulltext.Remove(ctx, id); err != nil {
			return err
		}
		var children []types.EntityID
		err := s.db.View(func(tx *buntdb.Tx) error {
			c, gerr := getContains(tx, id)
			children = c
			return gerr
		})
		if err != nil {
			return cberrors.Transientf("index.removeSubtreeFullText", err)
		}
		for _, c := range children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root)
}
