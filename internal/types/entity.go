package types

import "fmt"

// EntityTable is the closed set of node tables in the entity graph (C7).
type EntityTable string

const (
	TableText       EntityTable = "text"
	TableImage      EntityTable = "image"
	TableItem       EntityTable = "item"
	TablePage       EntityTable = "page"
	TableDocument   EntityTable = "document"
	TableAudioFrame EntityTable = "audio_frame"
	TableImageFrame EntityTable = "image_frame"
	TableAudio      EntityTable = "audio"
	TableVideo      EntityTable = "video"
	TableWeb        EntityTable = "web"
	TablePayload    EntityTable = "payload"
)

// rootTables are the tables a content root may belong to; every content
// node must be reachable, via contains edges, from exactly one of these.
var rootTables = map[EntityTable]bool{
	TableDocument: true,
	TableAudio:    true,
	TableVideo:    true,
	TableWeb:      true,
	TableImage:    true,
}

func (t EntityTable) IsRoot() bool { return rootTables[t] }

// indexableAncestorTables are the tables the query engine backtracks to:
// the nearest ancestor worth surfacing as an origin in a hit.
var indexableAncestorTables = map[EntityTable]bool{
	TablePage:       true,
	TableAudioFrame: true,
	TableImageFrame: true,
	TableItem:       true,
	TableDocument:   true,
	TableAudio:      true,
	TableVideo:      true,
	TableWeb:        true,
	TableImage:      true,
}

func (t EntityTable) IsIndexableAncestor() bool { return indexableAncestorTables[t] }

// EntityID addresses one row in the entity graph: a table name plus an
// opaque id unique within that table.
type EntityID struct {
	Table EntityTable `json:"table"`
	ID    string      `json:"id"`
}

func (id EntityID) String() string { return fmt.Sprintf("%s:%s", id.Table, id.ID) }

func (id EntityID) IsZero() bool { return id.Table == "" && id.ID == "" }
