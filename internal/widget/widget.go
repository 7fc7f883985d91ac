// Package widget maps field types to the capability set that handles their
// values. Dispatch is by type string through a registry with a mandatory
// fallback, so an unrecognized field type degrades to plain string editing
// instead of failing.
package widget

// Widget handles one field type. EmptyValue is the sentinel stored when an
// edit clears the field; it is typed the way the widget's editing values are.
type Widget interface {
	Type() string
	EmptyValue() any
}

// ValueDeserializer is the optional capability of turning the raw stored
// string into the typed value used while editing.
type ValueDeserializer interface {
	DeserializeValue(raw string) any
}

// ValueSerializer is the optional capability of turning a typed editing value
// back into the wire string the server stores.
type ValueSerializer interface {
	SerializeValue(value any) string
}

// Registry resolves field types to widgets. Lookup never returns nil: types
// without a registered widget resolve to the fallback.
type Registry struct {
	widgets  map[string]Widget
	fallback Widget
}

// NewRegistry creates an empty registry around the given fallback widget.
func NewRegistry(fallback Widget) *Registry {
	return &Registry{
		widgets:  make(map[string]Widget),
		fallback: fallback,
	}
}

// Register adds a widget under its own type, replacing any previous one.
func (r *Registry) Register(w Widget) {
	r.widgets[w.Type()] = w
}

// Lookup returns the widget registered for fieldType, or the fallback.
func (r *Registry) Lookup(fieldType string) Widget {
	if w, ok := r.widgets[fieldType]; ok {
		return w
	}
	return r.fallback
}

// Fallback returns the registry's fallback widget.
func (r *Registry) Fallback() Widget {
	return r.fallback
}

// Default returns a registry populated with the builtin widgets and the
// single-line string widget as fallback.
func Default() *Registry {
	r := NewRegistry(StringWidget{})
	r.Register(StringWidget{})
	r.Register(TextWidget{})
	r.Register(BooleanWidget{})
	r.Register(CheckboxesWidget{})
	r.Register(IntegerWidget{})
	return r
}
