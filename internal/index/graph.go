package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/buntdb"

	cberrors "github.com/standardbeagle/contentbase/internal/errors"
	"github.com/standardbeagle/contentbase/internal/types"
)

type node struct {
	ID     types.EntityID    `json:"id"`
	Fields map[string]string `json:"fields,omitempty"`
}

func nodeKey(id types.EntityID) string { return "node:" + id.String() }
func containsKey(parent types.EntityID) string { return "contains:" + parent.String() }
func withKey(root types.EntityID) string { return "with:" + root.String() }

// graph is the entity graph (nodes + contains/with edges). Every write
// that touches more than one key runs inside a buntdb.Update transaction,
// which buntdb documents as all-or-nothing: a non-nil return rolls every
// write in the closure back, which is how the spec's "any partial failure
// rolls back the entire root insertion" is satisfied without a bespoke
// undo log.
type graph struct {
	db *buntdb.DB
}

func newGraph(db *buntdb.DB) *graph { return &graph{db: db} }

func getNode(tx *buntdb.Tx, id types.EntityID) (*node, error) {
	raw, err := tx.Get(nodeKey(id))
	if err == buntdb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var n node
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func getContains(tx *buntdb.Tx, parent types.EntityID) ([]types.EntityID, error) {
	raw, err := tx.Get(containsKey(parent))
	if err == buntdb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var children []types.EntityID
	if err := json.Unmarshal([]byte(raw), &children); err != nil {
		return nil, err
	}
	return children, nil
}

func setNode(tx *buntdb.Tx, n *node) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, _, err = tx.Set(nodeKey(n.ID), string(data), nil)
	return err
}

func setContains(tx *buntdb.Tx, parent types.EntityID, children []types.EntityID) error {
	data, err := json.Marshal(children)
	if err != nil {
		return err
	}
	_, _, err = tx.Set(containsKey(parent), string(data), nil)
	return err
}

// Tx is the transactional handle passed to a root-insertion closure. Every
// method runs referential-integrity checks before writing.
type Tx struct {
	btx *buntdb.Tx
}

// CreateLeaf creates a node with no children (text, image, payload).
func (gt *Tx) CreateLeaf(table types.EntityTable, id string, fields map[string]string) (types.EntityID, error) {
	entity := types.EntityID{Table: table, ID: id}
	if existing, err := getNode(gt.btx, entity); err != nil {
		return types.EntityID{}, err
	} else if existing != nil {
		return entity, nil // idempotent re-create
	}
	if err := setNode(gt.btx, &node{ID: entity, Fields: fields}); err != nil {
		return types.EntityID{}, err
	}
	return entity, nil
}

// CreateContainer creates a node related to children via contains,
// failing with referential-integrity violation if any child is missing.
func (gt *Tx) CreateContainer(table types.EntityTable, id string, children []types.EntityID, fields map[string]string) (types.EntityID, error) {
	for _, c := range children {
		existing, err := getNode(gt.btx, c)
		if err != nil {
			return types.EntityID{}, err
		}
		if existing == nil {
			return types.EntityID{}, cberrors.Permanentf("index.CreateContainer", fmt.Errorf("dangling contains edge: child %s does not exist", c))
		}
	}
	entity := types.EntityID{Table: table, ID: id}
	if err := setNode(gt.btx, &node{ID: entity, Fields: fields}); err != nil {
		return types.EntityID{}, err
	}
	if len(children) > 0 {
		if err := setContains(gt.btx, entity, children); err != nil {
			return types.EntityID{}, err
		}
	}
	return entity, nil
}

// CreateRoot creates a root node (document/audio/video/web/image) related
// to children the same way CreateContainer is.
func (gt *Tx) CreateRoot(table types.EntityTable, id string, children []types.EntityID, fields map[string]string) (types.EntityID, error) {
	if !table.IsRoot() {
		return types.EntityID{}, cberrors.Permanentf("index.CreateRoot", fmt.Errorf("%s is not a root table", table))
	}
	return gt.CreateContainer(table, id, children, fields)
}

// RelateWithPayload attaches a payload node to root via a with edge. Every
// root must have exactly one; calling this twice replaces the edge.
func (gt *Tx) RelateWithPayload(root types.EntityID, fileID types.FileIdentifier, url *string) error {
	if existing, err := getNode(gt.btx, root); err != nil {
		return err
	} else if existing == nil {
		return cberrors.Permanentf("index.RelateWithPayload", fmt.Errorf("dangling with edge: root %s does not exist", root))
	}
	payloadID := types.EntityID{Table: types.TablePayload, ID: string(fileID)}
	fields := map[string]string{"file_identifier": string(fileID)}
	if url != nil {
		fields["url"] = *url
	}
	if err := setNode(gt.btx, &node{ID: payloadID, Fields: fields}); err != nil {
		return err
	}
	data, err := json.Marshal(payloadID)
	if err != nil {
		return err
	}
	_, _, err = gt.btx.Set(withKey(root), string(data), nil)
	return err
}

// AddChild appends child to parent's existing contains list, idempotently,
// failing with a referential-integrity violation if either endpoint is
// missing.
func (gt *Tx) AddChild(parent, child types.EntityID) error {
	if existing, err := getNode(gt.btx, parent); err != nil {
		return err
	} else if existing == nil {
		return cberrors.Permanentf("index.AddChild", fmt.Errorf("dangling contains edge: parent %s does not exist", parent))
	}
	if existing, err := getNode(gt.btx, child); err != nil {
		return err
	} else if existing == nil {
		return cberrors.Permanentf("index.AddChild", fmt.Errorf("dangling contains edge: child %s does not exist", child))
	}
	children, err := getContains(gt.btx, parent)
	if err != nil {
		return err
	}
	for _, c := range children {
		if c == child {
			return nil
		}
	}
	return setContains(gt.btx, parent, append(children, child))
}

// NodeExists reports whether id has already been created.
func (g *graph) NodeExists(ctx context.Context, id types.EntityID) (bool, error) {
	var exists bool
	err := g.db.View(func(tx *buntdb.Tx) error {
		n, err := getNode(tx, id)
		if err != nil {
			return err
		}
		exists = n != nil
		return nil
	})
	if err != nil {
		return false, cberrors.Transientf("index.NodeExists", err)
	}
	return exists, nil
}

// InsertRoot runs build inside one transaction; any error it returns
// aborts the entire insertion, per the creation protocol's transactional
// boundary. Also used for any other atomic graph mutation, such as
// incremental leaf attachment, which needs the same all-or-nothing
// guarantee.
func (g *graph) InsertRoot(ctx context.Context, build func(tx *Tx) (types.EntityID, error)) (types.EntityID, error) {
	if err := ctx.Err(); err != nil {
		return types.EntityID{}, cberrors.NewCancelled("index.InsertRoot")
	}
	var result types.EntityID
	err := g.db.Update(func(btx *buntdb.Tx) error {
		r, err := build(&Tx{btx: btx})
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return types.EntityID{}, err
	}
	return result, nil
}

// Payload resolves the with-payload entity for root, or nil if absent.
func (g *graph) Payload(ctx context.Context, root types.EntityID) (*types.EntityID, *string, error) {
	var payload types.EntityID
	var url *string
	err := g.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(withKey(root))
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return err
		}
		n, err := getNode(tx, payload)
		if err != nil {
			return err
		}
		if n != nil {
			if u, ok := n.Fields["url"]; ok {
				url = &u
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, cberrors.Transientf("index.Payload", err)
	}
	if payload.IsZero() {
		return nil, nil, nil
	}
	return &payload, url, nil
}

// ParentOf returns a node whose contains list includes child, or nil if no
// node's does. Since contains is stored child-list-on-parent, walking "up"
// means scanning every node's children for child on each call; no parent
// index is kept.
func (g *graph) ParentOf(ctx context.Context, child types.EntityID) (*types.EntityID, error) {
	var parent *types.EntityID
	err := g.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("contains:*", func(key, value string) bool {
			var children []types.EntityID
			if err := json.Unmarshal([]byte(value), &children); err != nil {
				return true
			}
			for _, c := range children {
				if c == child {
					p := parentFromContainsKey(key)
					parent = &p
					return false
				}
			}
			return true
		})
	})
	if err != nil {
		return nil, cberrors.Transientf("index.ParentOf", err)
	}
	return parent, nil
}

func parentFromContainsKey(key string) types.EntityID {
	rest := key[len("contains:"):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == ':' {
			return types.EntityID{Table: types.EntityTable(rest[:i]), ID: rest[i+1:]}
		}
	}
	return types.EntityID{}
}

// RootOf walks ParentOf all the way to the top, past any indexable
// ancestor backtracking would otherwise stop at, returning the true
// content root (document/audio/video/web/image) entity owns. Used by the
// query engine to filter hits by content kind, which AncestorOrigin's
// nearest-ancestor chain can't answer when an origin is an intermediate
// container such as a page.
func (g *graph) RootOf(ctx context.Context, entity types.EntityID) (types.EntityID, error) {
	cur := entity
	for {
		parent, err := g.ParentOf(ctx, cur)
		if err != nil {
			return types.EntityID{}, err
		}
		if parent == nil {
			return cur, nil
		}
		cur = *parent
	}
}

// DeleteRoot removes root, its with-payload edge, and every descendant
// reachable via contains, cascading depth-first.
func (g *graph) DeleteRoot(ctx context.Context, root types.EntityID) error {
	return g.db.Update(func(tx *buntdb.Tx) error {
		return deleteSubtree(tx, root)
	})
}

func deleteSubtree(tx *buntdb.Tx, id types.EntityID) error {
	children, err := getContains(tx, id)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := deleteSubtree(tx, c); err != nil {
			return err
		}
	}
	if _, err := tx.Delete(containsKey(id)); err != nil && err != buntdb.ErrNotFound {
		return err
	}
	if _, err := tx.Delete(withKey(id)); err != nil && err != buntdb.ErrNotFound {
		return err
	}
	if _, err := tx.Delete(nodeKey(id)); err != nil && err != buntdb.ErrNotFound {
		return err
	}
	return nil
}

// RootsWithFileIdentifier finds every root node whose with-payload carries
// fileID, used by the facade's delete operation.
func (g *graph) RootsWithFileIdentifier(ctx context.Context, fileID types.FileIdentifier) ([]types.EntityID, error) {
	var roots []types.EntityID
	err := g.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("with:*", func(key, value string) bool {
			var payload types.EntityID
			if err := json.Unmarshal([]byte(value), &payload); err != nil {
				return true
			}
			if payload.Table == types.TablePayload && payload.ID == string(fileID) {
				roots = append(roots, parentFromWithKey(key))
			}
			return true
		})
	})
	if err != nil {
		return nil, cberrors.Transientf("index.RootsWithFileIdentifier", err)
	}
	return roots, nil
}

func parentFromWithKey(key string) types.EntityID {
	return parentFromContainsKey("contains:" + key[len("with:"):])
}
