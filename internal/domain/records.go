package domain

// PathSegment is one ancestor (or the record itself) in a resolved ancestor
// chain. A segment with Exists=false is addressable but not materialized as a
// record yet; it carries no usable label.
type PathSegment struct {
	Path            string `json:"path"`              // Canonical record path
	ID              string `json:"id"`                // Last path segment
	Label           string `json:"label"`             // Human label, empty when Exists is false
	Exists          bool   `json:"exists"`            // Record is materialized on the server
	CanHaveChildren bool   `json:"can_have_children"` // Children may be created below this segment
}

// PathInfo is the response of the pathinfo endpoint: the ordered ancestor
// chain for a path, root first.
type PathInfo struct {
	Segments []PathSegment `json:"segments"`
}

// FieldDescriptor describes one editable field of a record's model. Type
// selects the widget responsible for the field.
type FieldDescriptor struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// DataModel is a record type's schema: the ordered field descriptor list.
type DataModel struct {
	Fields []FieldDescriptor `json:"fields"`
}

// RecordInfo carries record metadata alongside the raw data. Exists=false is a
// valid state representing an addressable-but-uncreated path (the add-new-record
// flow edits exactly such records).
type RecordInfo struct {
	Exists     bool   `json:"exists"`
	Label      string `json:"label"`
	ID         string `json:"id"`
	Attachment bool   `json:"attachment,omitempty"`
	URLPath    string `json:"url_path,omitempty"` // Public site URL path of the record
}

// RawRecord is the response of the rawrecord endpoint: raw stored values keyed
// by field name, the record's schema, and its metadata.
type RawRecord struct {
	Data       map[string]string `json:"data"`
	DataModel  DataModel         `json:"datamodel"`
	RecordInfo RecordInfo        `json:"record_info"`
}

// NewRecordResult is the response of the newrecord endpoint.
type NewRecordResult struct {
	ValidID bool   `json:"valid_id"` // False when the requested id was rejected
	Exists  bool   `json:"exists"`   // True when a record with that id already existed
	Path    string `json:"path"`     // Canonical path of the created record
}

// PreviewInfo is the response of the previewinfo endpoint: where the record
// lives on the public site. An empty URL means the record produces no page.
type PreviewInfo struct {
	Exists bool   `json:"exists"`
	URL    string `json:"url"`
}

// ServerInfo is the response of the ping endpoint.
type ServerInfo struct {
	ProjectID string `json:"project_id"`
	Version   string `json:"version"`
}
