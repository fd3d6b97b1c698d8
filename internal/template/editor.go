package template

import (
	"fmt"
	"regexp"
	"strconv"
)

// Field is a top-level template field editable by the user.
type Field string

const (
	FieldName     Field = "name"
	FieldLanguage Field = "language"
	FieldCategory Field = "category"
)

// ComponentField is a per-component field editable by the user.
type ComponentField string

const (
	FieldText     ComponentField = "text"
	FieldFormat   ComponentField = "format"
	FieldOptional ComponentField = "optional"
)

// Empty names are allowed while the user is still typing.
var namePattern = regexp.MustCompile(`^[a-z0-9_]*$`)

// SetField returns a copy of t with one top-level field replaced.
func SetField(t Template, field Field, value string) (Template, error) {
	out := Clone(t)
	switch field {
	case FieldName:
		if !namePattern.MatchString(value) {
			return t, fmt.Errorf("%w: name %q must use lowercase letters, digits and underscores", ErrInvalidValue, value)
		}
		out.Name = value
	case FieldLanguage:
		lang := Language(value)
		if !lang.Valid() {
			return t, fmt.Errorf("%w: language %q", ErrInvalidValue, value)
		}
		out.Language = lang
	case FieldCategory:
		cat := Category(value)
		if !cat.Valid() {
			return t, fmt.Errorf("%w: category %q", ErrInvalidValue, value)
		}
		out.Category = cat
	default:
		return t, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return out, nil
}

// SetComponentField returns a copy of t with one field of the component at
// index replaced. On any error the original t is returned untouched.
func SetComponentField(t Template, index int, field ComponentField, value string) (Template, error) {
	if index < 0 || index >= len(t.Components) {
		return t, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	out := Clone(t)
	current := out.Components[index]

	if field == FieldOptional {
		optional, err := strconv.ParseBool(value)
		if err != nil {
			return t, fmt.Errorf("%w: optional %q", ErrInvalidValue, value)
		}
		out.Components[index] = current.withOptional(optional)
		return out, nil
	}

	switch c := current.(type) {
	case Header:
		switch field {
		case FieldText:
			c.Text = value
		case FieldFormat:
			f, err := ParseFormat(value)
			if err != nil {
				return t, err
			}
			c.Format = f
			if f.IsMedia() {
				c.Text = ""
			}
		default:
			return t, fmt.Errorf("%w: %q on HEADER", ErrUnknownField, field)
		}
		out.Components[index] = c
	case Body:
		if field != FieldText {
			return t, fmt.Errorf("%w: %q on BODY", ErrUnknownField, field)
		}
		c.Text = value
		out.Components[index] = c
	case Footer:
		if field != FieldText {
			return t, fmt.Errorf("%w: %q on FOOTER", ErrUnknownField, field)
		}
		c.Text = truncate(value, MaxFooterLength)
		out.Components[index] = c
	case Buttons:
		return t, fmt.Errorf("%w: %q on BUTTONS, use the button operations", ErrUnknownField, field)
	}
	return out, nil
}

// ToggleRemoved flips the soft-removal flag of the component at index. The
// component stays in place so the action can be undone.
func ToggleRemoved(t Template, index int) (Template, error) {
	if index < 0 || index >= len(t.Components) {
		return t, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	out := Clone(t)
	c := out.Components[index]
	out.Components[index] = c.withRemoved(!c.IsRemoved())
	return out, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
