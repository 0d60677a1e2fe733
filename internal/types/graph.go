package types

// NodeKind enumerates the entity-graph tables the index store maintains.
type NodeKind string

const (
	NodeText       NodeKind = "text"
	NodeImage      NodeKind = "image"
	NodeItem       NodeKind = "item"
	NodePage       NodeKind = "page"
	NodeDocument   NodeKind = "document"
	NodeAudioFrame NodeKind = "audio_frame"
	NodeImageFrame NodeKind = "image_frame"
	NodeAudio      NodeKind = "audio"
	NodeVideo      NodeKind = "video"
	NodeWeb        NodeKind = "web"
	NodePayload    NodeKind = "payload"
)

// IsRoot reports whether a node kind may be the root of a content tree
// (the anchor a `with` edge attaches a payload to).
func (k NodeKind) IsRoot() bool {
	switch k {
	case NodeDocument, NodeAudio, NodeVideo, NodeWeb, NodeImage:
		return true
	}
	return false
}

// IsIndexable reports whether a node kind is a valid backtrack ancestor
// for a query hit (page / audio_frame / image_frame / item / root).
func (k NodeKind) IsIndexable() bool {
	switch k {
	case NodePage, NodeAudioFrame, NodeImageFrame, NodeItem:
		return true
	}
	return k.IsRoot()
}

// NewEntityID builds the EntityID (declared in entity.go) of a row in table.
func NewEntityID(table NodeKind, id string) EntityID {
	return EntityID{Table: EntityTable(table), ID: id}
}

// EdgeKind is the relation type between two entity nodes.
type EdgeKind string

const (
	EdgeContains EdgeKind = "contains" // parent -> child, hierarchy
	EdgeWith     EdgeKind = "with"     // content root -> payload
)

// Payload carries the external reference a content root is searchable
// from: the owning file and, for web content, a source URL.
type Payload struct {
	FileIdentifier FileIdentifier
	URL            *string
}
