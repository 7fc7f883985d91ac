package domain

// Target selects which view a generated record link lands on.
type Target string

func (t Target) String() string {
	return string(t)
}

const (
	TargetEdit    Target = "edit"
	TargetPreview Target = "preview"
)

// Known navigation destinations the route collaborator accepts. Every
// destination takes the canonicalized, alt-qualified record path as its
// parameter.
const (
	TargetDelete        Target = "delete"
	TargetAddChild      Target = "add-child"
	TargetAddAttachment Target = "add-attachment"
	TargetPublish       Target = "publish"
)

// System field names the server attaches to every raw record. They are
// identifiers, not content, and are excluded from rendering while still being
// round-tripped on submit.
const (
	FieldPath           = "_path"
	FieldGlobalID       = "_gid"
	FieldModel          = "_model"
	FieldAttachmentFor  = "_attachment_for"
	FieldAttachmentType = "_attachment_type"
	FieldID             = "_id"
	FieldAlt            = "_alt"
)

// SystemFieldPrefix marks reserved field names. System fields are rendered
// with a visual distinction but dispatch to widgets like any other field.
const SystemFieldPrefix = "_"
