package template

import (
	"encoding/json"
	"fmt"
)

// componentJSON is the provider's flat component shape.
type componentJSON struct {
	Type     ComponentType   `json:"type"`
	Format   Format          `json:"format,omitempty"`
	Text     string          `json:"text,omitempty"`
	Optional bool            `json:"optional,omitempty"`
	Removed  bool            `json:"removed,omitempty"`
	Example  json.RawMessage `json:"example,omitempty"`
	Buttons  []Button        `json:"buttons,omitempty"`
}

func (cs Components) MarshalJSON() ([]byte, error) {
	out := make([]componentJSON, 0, len(cs))
	for _, c := range cs {
		wire := componentJSON{Type: c.Type(), Optional: c.IsOptional(), Removed: c.IsRemoved()}
		var example interface{}
		switch v := c.(type) {
		case Header:
			wire.Format = v.Format
			wire.Text = v.Text
			if v.Example != nil {
				example = v.Example
			}
		case Body:
			wire.Text = v.Text
			if v.Example != nil {
				example = v.Example
			}
		case Footer:
			wire.Text = v.Text
		case Buttons:
			wire.Buttons = v.Buttons
		default:
			return nil, fmt.Errorf("%w: %T", ErrUnknownComponent, c)
		}
		if example != nil {
			raw, err := json.Marshal(example)
			if err != nil {
				return nil, err
			}
			wire.Example = raw
		}
		out = append(out, wire)
	}
	return json.Marshal(out)
}

func (cs *Components) UnmarshalJSON(data []byte) error {
	var wires []componentJSON
	if err := json.Unmarshal(data, &wires); err != nil {
		return err
	}

	seen := make(map[ComponentType]bool, len(wires))
	out := make(Components, 0, len(wires))
	for _, w := range wires {
		if seen[w.Type] {
			return fmt.Errorf("%w: %s", ErrDuplicateComponent, w.Type)
		}
		seen[w.Type] = true

		switch w.Type {
		case ComponentHeader:
			h := Header{Format: w.Format, Text: w.Text, Optional: w.Optional, Removed: w.Removed}
			if h.Format == "" {
				h.Format = FormatText
			}
			f, err := ParseFormat(string(h.Format))
			if err != nil {
				return err
			}
			h.Format = f
			if len(w.Example) > 0 {
				h.Example = &HeaderExample{}
				if err := json.Unmarshal(w.Example, h.Example); err != nil {
					return fmt.Errorf("header example: %w", err)
				}
			}
			out = append(out, h)
		case ComponentBody:
			b := Body{Text: w.Text, Optional: w.Optional, Removed: w.Removed}
			if len(w.Example) > 0 {
				b.Example = &BodyExample{}
				if err := json.Unmarshal(w.Example, b.Example); err != nil {
					return fmt.Errorf("body example: %w", err)
				}
			}
			out = append(out, b)
		case ComponentFooter:
			out = append(out, Footer{Text: w.Text, Optional: w.Optional, Removed: w.Removed})
		case ComponentButtons:
			// An empty BUTTONS block cannot exist in the model.
			if len(w.Buttons) == 0 {
				continue
			}
			buttons := w.Buttons
			if len(buttons) > MaxButtons {
				buttons = buttons[:MaxButtons]
			}
			out = append(out, Buttons{Buttons: append([]Button(nil), buttons...), Optional: w.Optional, Removed: w.Removed})
		default:
			return fmt.Errorf("%w: %q", ErrUnknownComponent, w.Type)
		}
	}
	*cs = out
	return nil
}

// MarshalJSON adds the derived has_media and media_type flags.
func (t Template) MarshalJSON() ([]byte, error) {
	type alias Template
	return json.Marshal(struct {
		alias
		HasMedia  bool   `json:"has_media"`
		MediaType Format `json:"media_type,omitempty"`
	}{
		alias:     alias(t),
		HasMedia:  t.HasMedia(),
		MediaType: t.MediaType(),
	})
}
