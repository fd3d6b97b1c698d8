// Package template holds the in-memory model of a WhatsApp message template
// and the pure operations used to edit it.
package template

import (
	"fmt"
	"strings"
)

// ComponentType identifies one structural block of a template.
type ComponentType string

const (
	ComponentHeader  ComponentType = "HEADER"
	ComponentBody    ComponentType = "BODY"
	ComponentFooter  ComponentType = "FOOTER"
	ComponentButtons ComponentType = "BUTTONS"
)

// Format is the HEADER format.
type Format string

const (
	FormatText     Format = "TEXT"
	FormatImage    Format = "IMAGE"
	FormatVideo    Format = "VIDEO"
	FormatDocument Format = "DOCUMENT"
)

// Valid reports whether f is one of the four header formats.
func (f Format) Valid() bool {
	switch f {
	case FormatText, FormatImage, FormatVideo, FormatDocument:
		return true
	}
	return false
}

// IsMedia reports whether f requires a binary asset.
func (f Format) IsMedia() bool {
	return f == FormatImage || f == FormatVideo || f == FormatDocument
}

// ParseFormat accepts any letter case ("image", "IMAGE").
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToUpper(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: header format %q", ErrInvalidValue, s)
	}
	return f, nil
}

// Category is the provider template category.
type Category string

const (
	CategoryUtility        Category = "UTILITY"
	CategoryMarketing      Category = "MARKETING"
	CategoryAuthentication Category = "AUTHENTICATION"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryUtility, CategoryMarketing, CategoryAuthentication:
		return true
	}
	return false
}

// Language is a provider language code.
type Language string

// Languages lists the codes a template may be authored in.
var Languages = []Language{"en", "hi", "es", "pt_BR"}

func (l Language) Valid() bool {
	for _, known := range Languages {
		if l == known {
			return true
		}
	}
	return false
}

// ButtonType is the provider button type.
type ButtonType string

const (
	ButtonQuickReply  ButtonType = "QUICK_REPLY"
	ButtonURL         ButtonType = "URL"
	ButtonPhoneNumber ButtonType = "PHONE_NUMBER"
	ButtonCopyCode    ButtonType = "COPY_CODE"
	ButtonFlow        ButtonType = "FLOW"
)

// Provider limits.
const (
	MaxButtons          = 3
	MaxFooterLength     = 60
	MaxButtonTextLength = 20
	DefaultButtonText   = "New Button"
)

// Component is one of Header, Body, Footer or Buttons. The set is closed:
// only this package can add variants.
type Component interface {
	Type() ComponentType
	IsRemoved() bool
	IsOptional() bool

	clone() Component
	withRemoved(removed bool) Component
	withOptional(optional bool) Component
}

// Header is the optional first block: text or a media placeholder.
type Header struct {
	Format   Format
	Text     string
	Optional bool
	Removed  bool
	Example  *HeaderExample
}

// HeaderExample carries the sample the provider reviews.
type HeaderExample struct {
	HeaderText   []string `json:"header_text,omitempty"`
	HeaderHandle []string `json:"header_handle,omitempty"`
}

func (Header) Type() ComponentType { return ComponentHeader }
func (h Header) IsRemoved() bool { return h.Removed }
func (h Header) IsOptional() bool { return h.Optional }
func (h Header) clone() Component {
	if h.Example != nil {
		ex := HeaderExample{
			HeaderText:   append([]string(nil), h.Example.HeaderText...),
			HeaderHandle: append([]string(nil), h.Example.HeaderHandle...),
		}
		h.Example = &ex
	}
	return h
}
func (h Header) withRemoved(removed bool) Component { h.Removed = removed; return h }
func (h Header) withOptional(optional bool) Component { h.Optional = optional; return h }

// Body is the main message text, possibly with {{n}} placeholders.
type Body struct {
	Text     string
	Optional bool
	Removed  bool
	Example  *BodyExample
}

// BodyExample holds sample values for the body placeholders.
type BodyExample struct {
	BodyText [][]string `json:"body_text,omitempty"`
}

func (Body) Type() ComponentType { return ComponentBody }
func (b Body) IsRemoved() bool { return b.Removed }
func (b Body) IsOptional() bool { return b.Optional }
func (b Body) clone() Component {
	if b.Example != nil {
		rows := make([][]string, len(b.Example.BodyText))
		for i, row := range b.Example.BodyText {
			rows[i] = append([]string(nil), row...)
		}
		b.Example = &BodyExample{BodyText: rows}
	}
	return b
}
func (b Body) withRemoved(removed bool) Component { b.Removed = removed; return b }
func (b Body) withOptional(optional bool) Component { b.Optional = optional; return b }

// Footer is a short trailing line.
type Footer struct {
	Text     string
	Optional bool
	Removed  bool
}

func (Footer) Type() ComponentType { return ComponentFooter }
func (f Footer) IsRemoved() bool { return f.Removed }
func (f Footer) IsOptional() bool { return f.Optional }
func (f Footer) clone() Component { return f }
func (f Footer) withRemoved(removed bool) Component { f.Removed = removed; return f }
func (f Footer) withOptional(optional bool) Component { f.Optional = optional; return f }

// Buttons holds between one and MaxButtons buttons.
type Buttons struct {
	Buttons  []Button
	Optional bool
	Removed  bool
}

// Button is a single call to action.
type Button struct {
	Type        ButtonType `json:"type"`
	Text        string     `json:"text"`
	URL         string     `json:"url,omitempty"`
	PhoneNumber string     `json:"phone_number,omitempty"`
}

func (Buttons) Type() ComponentType { return ComponentButtons }
func (b Buttons) IsRemoved() bool { return b.Removed }
func (b Buttons) IsOptional() bool { return b.Optional }
func (b Buttons) clone() Component {
	b.Buttons = append([]Button(nil), b.Buttons...)
	return b
}
func (b Buttons) withRemoved(removed bool) Component { b.Removed = removed; return b }
func (b Buttons) withOptional(optional bool) Component { b.Optional = optional; return b }

// Variable describes one body placeholder. Informational only.
type Variable struct {
	Position    int    `json:"position"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Example     string `json:"example,omitempty"`
}

// Template is the aggregate root. Treat values as immutable: every operation
// in this package returns a fresh Template.
type Template struct {
	ID              string     `json:"id,omitempty"`
	Name            string     `json:"name"`
	Language        Language   `json:"language"`
	Category        Category   `json:"category"`
	Description     string     `json:"description,omitempty"`
	Source          string     `json:"source,omitempty"`
	Components      Components `json:"components"`
	VariablesNeeded []Variable `json:"variables_needed,omitempty"`
}

// Components is the ordered block list; order is the rendered order.
type Components []Component

// Index returns the position of the component of type ct, or -1.
func (cs Components) Index(ct ComponentType) int {
	for i, c := range cs {
		if c.Type() == ct {
			return i
		}
	}
	return -1
}

// Header returns the HEADER block (removed or not) and its index.
func (t Template) Header() (Header, int, bool) {
	i := t.Components.Index(ComponentHeader)
	if i < 0 {
		return Header{}, -1, false
	}
	return t.Components[i].(Header), i, true
}

// ActiveHeader returns the HEADER only when it is not marked removed.
func (t Template) ActiveHeader() (Header, bool) {
	h, _, ok := t.Header()
	if !ok || h.Removed {
		return Header{}, false
	}
	return h, true
}

// HasMedia mirrors the active HEADER: true when it carries a media format.
func (t Template) HasMedia() bool {
	h, ok := t.ActiveHeader()
	return ok && h.Format.IsMedia()
}

// MediaType is the active media header format, or "" when there is none.
func (t Template) MediaType() Format {
	if h, ok := t.ActiveHeader(); ok && h.Format.IsMedia() {
		return h.Format
	}
	return ""
}

// Active returns a copy without removed components. This is the shape that
// leaves the process.
func (t Template) Active() Template {
	out := Clone(t)
	kept := make(Components, 0, len(out.Components))
	for _, c := range out.Components {
		if !c.IsRemoved() {
			kept = append(kept, c)
		}
	}
	out.Components = kept
	return out
}

// Clone deep-copies t. Drafts are always instantiated through Clone so that
// edits never reach back into a generator's candidate list.
func Clone(t Template) Template {
	out := t
	if t.Components != nil {
		out.Components = make(Components, len(t.Components))
		for i, c := range t.Components {
			out.Components[i] = c.clone()
		}
	}
	if t.VariablesNeeded != nil {
		out.VariablesNeeded = append([]Variable(nil), t.VariablesNeeded...)
	}
	return out
}
