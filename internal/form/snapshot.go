// Package form decides, per schema field, which value the editor displays and
// which value it submits: pending edits win over the stored server data, and
// widget hooks translate between the wire strings and typed editing values.
package form

import (
	"fmt"

	"arbor/editor/internal/domain"
	"arbor/editor/internal/widget"
)

// Fields excluded from rendering entirely. Their values are identifiers owned
// by the server and are round-tripped on submit without passing through any
// widget.
var hiddenFields = map[string]struct{}{
	domain.FieldPath:           {},
	domain.FieldGlobalID:       {},
	domain.FieldModel:          {},
	domain.FieldAttachmentFor:  {},
	domain.FieldAttachmentType: {},
}

// IsHiddenField reports whether the named field is never rendered.
func IsHiddenField(name string) bool {
	_, ok := hiddenFields[name]
	return ok
}

// IsSystemField reports whether the named field is reserved. System fields
// render with a visual distinction but dispatch to widgets like any other.
func IsSystemField(name string) bool {
	return len(name) > 0 && name[:1] == domain.SystemFieldPrefix
}

// Snapshot is the authoritative editing state for one record: the raw values
// the server last sent, the edits typed in since, and the schema ordering
// them. Snapshots are values; SetFieldValue returns a new Snapshot and never
// mutates the receiver, so references held by in-flight callbacks observe a
// stable state.
type Snapshot struct {
	InitialData  map[string]string
	PendingEdits map[string]any
	Model        []domain.FieldDescriptor
	Info         domain.RecordInfo

	reg *widget.Registry
}

// Empty returns a fresh snapshot with no data, bound to reg. A new one is
// allocated on every path change so edits can never leak across records.
func Empty(reg *widget.Registry) Snapshot {
	return Snapshot{
		InitialData:  map[string]string{},
		PendingEdits: map[string]any{},
		reg:          reg,
	}
}

// NewSnapshot builds the editing state for a freshly loaded record. The raw
// record's maps are taken over by the snapshot; the loader hands over
// ownership with the result.
func NewSnapshot(rec *domain.RawRecord, reg *widget.Registry) Snapshot {
	s := Empty(reg)
	if rec == nil {
		return s
	}
	if rec.Data != nil {
		s.InitialData = rec.Data
	}
	s.Model = rec.DataModel.Fields
	s.Info = rec.RecordInfo
	return s
}

func (s Snapshot) registry() *widget.Registry {
	if s.reg != nil {
		return s.reg
	}
	return widget.Default()
}

// Loaded reports whether the snapshot holds server data yet.
func (s Snapshot) Loaded() bool {
	return s.Model != nil || len(s.InitialData) > 0
}

// Dirty reports whether any field has a pending edit.
func (s Snapshot) Dirty() bool {
	return len(s.PendingEdits) > 0
}

// SetFieldValue records an edit and returns the resulting snapshot. A nil
// value stores the field type's empty value; the key is never removed, which
// is what lets an edit clear a stored value on submit. The receiver's edit
// map is copied, not mutated.
func (s Snapshot) SetFieldValue(field domain.FieldDescriptor, value any) Snapshot {
	if value == nil {
		value = s.registry().Lookup(field.Type).EmptyValue()
	}
	edits := make(map[string]any, len(s.PendingEdits)+1)
	for k, v := range s.PendingEdits {
		edits[k] = v
	}
	edits[field.Name] = value

	out := s
	out.PendingEdits = edits
	return out
}

// DisplayValue resolves what the editor shows for a field: the pending edit
// verbatim when one exists (it is already typed for editing), otherwise the
// stored raw value passed through the widget's deserializer when the widget
// has one.
func (s Snapshot) DisplayValue(field domain.FieldDescriptor) any {
	if v, ok := s.PendingEdits[field.Name]; ok {
		return v
	}
	raw := s.InitialData[field.Name]
	if d, ok := s.registry().Lookup(field.Type).(widget.ValueDeserializer); ok {
		return d.DeserializeValue(raw)
	}
	return raw
}

// SubmitValues resolves the full wire payload for a save: per field, the
// pending edit serialized through the widget when one exists, otherwise the
// stored raw value unchanged, so untouched fields keep the exact wire form
// the server last sent. Hidden fields round-trip their stored values even
// when the schema omits them.
func (s Snapshot) SubmitValues() map[string]string {
	out := make(map[string]string, len(s.Model)+len(hiddenFields))
	for _, field := range s.Model {
		if IsHiddenField(field.Name) {
			out[field.Name] = s.InitialData[field.Name]
			continue
		}
		out[field.Name] = s.submitValue(field)
	}
	for name := range hiddenFields {
		if _, done := out[name]; done {
			continue
		}
		if raw, ok := s.InitialData[name]; ok {
			out[name] = raw
		}
	}
	return out
}

func (s Snapshot) submitValue(field domain.FieldDescriptor) string {
	v, ok := s.PendingEdits[field.Name]
	if !ok {
		return s.InitialData[field.Name]
	}
	if ser, ok := s.registry().Lookup(field.Type).(widget.ValueSerializer); ok {
		return ser.SerializeValue(v)
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

// Commit folds submitted wire values back into the stored data and clears
// the pending edits the submission carried. A pending edit whose wire form
// differs from what was sent stays pending, so input typed while a save was
// in flight survives the fold.
func (s Snapshot) Commit(values map[string]string) Snapshot {
	initial := make(map[string]string, len(s.InitialData)+len(values))
	for k, v := range s.InitialData {
		initial[k] = v
	}
	for k, v := range values {
		initial[k] = v
	}

	edits := map[string]any{}
	for name, v := range s.PendingEdits {
		if field, known := s.fieldNamed(name); known {
			if sent, ok := values[name]; ok && s.submitValue(field) == sent {
				continue
			}
		}
		edits[name] = v
	}

	out := s
	out.InitialData = initial
	out.PendingEdits = edits
	return out
}

func (s Snapshot) fieldNamed(name string) (domain.FieldDescriptor, bool) {
	for _, f := range s.Model {
		if f.Name == name {
			return f, true
		}
	}
	return domain.FieldDescriptor{}, false
}

// VisibleFields returns the schema's fields in order, minus the hidden set.
func (s Snapshot) VisibleFields() []domain.FieldDescriptor {
	fields := make([]domain.FieldDescriptor, 0, len(s.Model))
	for _, f := range s.Model {
		if !IsHiddenField(f.Name) {
			fields = append(fields, f)
		}
	}
	return fields
}

// HiddenFields returns the schema's fields that are excluded from rendering,
// in order.
func (s Snapshot) HiddenFields() []domain.FieldDescriptor {
	fields := make([]domain.FieldDescriptor, 0, len(hiddenFields))
	for _, f := range s.Model {
		if IsHiddenField(f.Name) {
			fields = append(fields, f)
		}
	}
	return fields
}
