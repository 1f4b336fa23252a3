package composer

import (
	"errors"
	"fmt"

	"studio/internal/domain"
)

// TrendField is the schema field that is bound to the news selection.
const TrendField = "trend"

// TrendPlaceholder is displayed while no news item is selected.
const TrendPlaceholder = "Select a news item above"

var (
	ErrReadOnlyField = errors.New("field is bound to the news selection")
	ErrUnknownField  = errors.New("unknown field")
)

// FieldKind distinguishes free-text inputs from the bound trend display.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldTrend
)

// Field is one input of a built form.
type Field struct {
	Name        string
	Label       string
	Placeholder string
	Required    bool
	Kind        FieldKind
	Value       string
}

// Display is what the field shows: the value, or for the trend field the placeholder when empty.
func (f Field) Display() string {
	if f.Kind == FieldTrend && f.Value == "" {
		return TrendPlaceholder
	}
	return f.Value
}

// Form is built from a schema for one post type.
type Form struct {
	PostType string
	Fields   []Field
	// HasTrend is set when the form carries a trend field, required or not.
	// Such a form cannot be submitted until a news item is selected.
	HasTrend bool
}

// BuildForm lays out required fields first, then optional ones. A name
// listed twice is rendered once.
func BuildForm(postType string, schema domain.FormSchema) *Form {
	f := &Form{PostType: postType}
	seen := map[string]bool{}
	add := func(name string, required bool) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		field := Field{Name: name, Required: required}
		if required {
			field.Label = name + " *:"
		} else {
			field.Label = name + " :"
		}
		if name == TrendField {
			field.Kind = FieldTrend
			f.HasTrend = true
		} else {
			field.Kind = FieldText
			field.Placeholder = schema.Example[name]
			if field.Placeholder == "" {
				field.Placeholder = "Enter " + name
			}
		}
		f.Fields = append(f.Fields, field)
	}
	for _, name := range schema.RequiredFields {
		add(name, true)
	}
	for _, name := range schema.OptionalFields {
		add(name, false)
	}
	return f
}

// Field returns the named field.
func (f *Form) Field(name string) (*Field, bool) {
	for i := range f.Fields {
		if f.Fields[i].Name == name {
			return &f.Fields[i], true
		}
	}
	return nil, false
}

// SetValue updates a free-text field. The trend field cannot be typed into.
func (f *Form) SetValue(name, value string) error {
	field, ok := f.Field(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if field.Kind == FieldTrend {
		return ErrReadOnlyField
	}
	field.Value = value
	return nil
}

// SyncTrend copies the selected headline into the trend field.
func (f *Form) SyncTrend(title string) {
	if field, ok := f.Field(TrendField); ok {
		field.Value = title
	}
}

// Payload collects post_type plus every non-empty field value.
func (f *Form) Payload() map[string]string {
	payload := map[string]string{"post_type": f.PostType}
	for _, field := range f.Fields {
		if field.Value != "" {
			payload[field.Name] = field.Value
		}
	}
	return payload
}

func (f *Form) clone() *Form {
	if f == nil {
		return nil
	}
	c := *f
	c.Fields = append([]Field(nil), f.Fields...)
	return &c
}
