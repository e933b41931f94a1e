package model

// Field names one input of the pricing form.
type Field string

const (
	FieldPrice      Field = "price"
	FieldStockLevel Field = "stock_level"
	FieldDayOfWeek  Field = "day_of_week"
	FieldIsWeekend  Field = "is_weekend"
	FieldMonth      Field = "month"
)

// FieldSpec describes how a field is presented and checked.
type FieldSpec struct {
	Name        Field  `json:"name" yaml:"name"`
	Label       string `json:"label" yaml:"label"`
	Placeholder string `json:"placeholder" yaml:"placeholder"`
	Rule        string `json:"rule" yaml:"rule"`
}

// Fields is the fixed, exhaustive field set in display order.
var Fields = []FieldSpec{
	{Name: FieldPrice, Label: "Product Price", Placeholder: "Example: 49.99", Rule: "number > 0"},
	{Name: FieldStockLevel, Label: "Stock Level", Placeholder: "Example: 1200", Rule: "whole number >= 0"},
	{Name: FieldDayOfWeek, Label: "Day of Week (0-6)", Placeholder: "Example: 6 (Sunday)", Rule: "whole number 0-6"},
	{Name: FieldIsWeekend, Label: "Is Weekend (0 or 1)", Placeholder: "Example: 1 = Yes", Rule: `exactly "0" or "1"`},
	{Name: FieldMonth, Label: "Month (1-12)", Placeholder: "Example: 12", Rule: "whole number 1-12"},
}

var specByName = func() map[Field]FieldSpec {
	m := make(map[Field]FieldSpec, len(Fields))
	for _, f := range Fields {
		m[f.Name] = f
	}
	return m
}()

// Spec returns the FieldSpec for name and whether the field exists.
func Spec(name Field) (FieldSpec, bool) {
	s, ok := specByName[name]
	return s, ok
}

// Known reports whether name is one of the form fields.
func Known(name Field) bool {
	_, ok := specByName[name]
	return ok
}

// Values holds raw, unvalidated field text.
type Values map[Field]string

// Errors maps a field to a human-readable validation message.
// An empty map means the form is valid.
type Errors map[Field]string

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, s := range v {
		out[k] = s
	}
	return out
}

// Clone returns a shallow copy.
func (e Errors) Clone() Errors {
	out := make(Errors, len(e))
	for k, s := range e {
		out[k] = s
	}
	return out
}

// Ordered returns the errors in form display order.
func (e Errors) Ordered() []FieldError {
	var out []FieldError
	for _, f := range Fields {
		if msg, ok := e[f.Name]; ok && msg != "" {
			out = append(out, FieldError{Field: f.Name, Message: msg})
		}
	}
	return out
}

// FieldError is a single field/message pair.
type FieldError struct {
	Field   Field  `json:"field" yaml:"field"`
	Message string `json:"message" yaml:"message"`
}
