// Package form holds the pricing form's raw field values and their
// validation messages.
package form

import (
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/priceoptima/internal/model"
)

// ErrUnknownField is returned when a field name is not part of the form.
var ErrUnknownField = eris.New("form: unknown field")

// State holds current values and current errors. It does no parsing and has
// no side effects beyond its own memory.
type State struct {
	mu     sync.RWMutex
	values model.Values
	errors model.Errors
}

// NewState returns a form with every field empty and no errors.
func NewState() *State {
	s := &State{
		values: make(model.Values, len(model.Fields)),
		errors: make(model.Errors),
	}
	for _, f := range model.Fields {
		s.values[f.Name] = ""
	}
	return s
}

// SetField stores the raw value for name and clears that field's error.
// Other fields' errors are left alone until the next validation.
func (s *State) SetField(name model.Field, value string) error {
	if !model.Known(name) {
		return eris.Wrapf(ErrUnknownField, "%q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	delete(s.errors, name)
	return nil
}

// Fill sets several fields at once, with SetField semantics for each.
// Nothing is written if any name is unknown.
func (s *State) Fill(values model.Values) error {
	for name := range values {
		if !model.Known(name) {
			return eris.Wrapf(ErrUnknownField, "%q", name)
		}
	}
	for name, v := range values {
		if err := s.SetField(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Value returns the raw text of one field.
func (s *State) Value(name model.Field) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name]
}

// Values returns a copy of every field's raw text.
func (s *State) Values() model.Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.Clone()
}

// Errors returns a copy of the current error mapping.
func (s *State) Errors() model.Errors {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errors.Clone()
}

// Error returns the message for one field, or "".
func (s *State) Error(name model.Field) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errors[name]
}

// SetErrors replaces the whole error mapping.
func (s *State) SetErrors(errs model.Errors) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = errs.Clone()
}
