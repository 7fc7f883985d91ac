package widget

import (
	"strconv"
	"strings"
)

// StringWidget is the single-line text widget and the registry fallback. Wire
// format and editing value coincide, so it needs no serialize hooks.
type StringWidget struct{}

func (StringWidget) Type() string    { return "string" }
func (StringWidget) EmptyValue() any { return "" }

// TextWidget is the multi-line variant of StringWidget.
type TextWidget struct{}

func (TextWidget) Type() string    { return "text" }
func (TextWidget) EmptyValue() any { return "" }

// BooleanWidget edits yes/no flags. The server accepts a handful of spellings
// but always receives back the canonical yes/no pair.
type BooleanWidget struct{}

func (BooleanWidget) Type() string    { return "boolean" }
func (BooleanWidget) EmptyValue() any { return false }

func (BooleanWidget) DeserializeValue(raw string) any {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1":
		return true
	}
	return false
}

func (BooleanWidget) SerializeValue(value any) string {
	if b, ok := value.(bool); ok && b {
		return "yes"
	}
	return "no"
}

// CheckboxesWidget edits multi-select values stored as a comma separated
// string on the wire.
type CheckboxesWidget struct{}

func (CheckboxesWidget) Type() string    { return "checkboxes" }
func (CheckboxesWidget) EmptyValue() any { return []string{} }

func (CheckboxesWidget) DeserializeValue(raw string) any {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	return values
}

func (CheckboxesWidget) SerializeValue(value any) string {
	items, ok := value.([]string)
	if !ok {
		return ""
	}
	return strings.Join(items, ", ")
}

// IntegerWidget edits whole numbers. Unparseable wire values surface as zero
// rather than failing the whole form.
type IntegerWidget struct{}

func (IntegerWidget) Type() string    { return "integer" }
func (IntegerWidget) EmptyValue() any { return 0 }

func (IntegerWidget) DeserializeValue(raw string) any {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

func (IntegerWidget) SerializeValue(value any) string {
	n, ok := value.(int)
	if !ok {
		return ""
	}
	return strconv.Itoa(n)
}
