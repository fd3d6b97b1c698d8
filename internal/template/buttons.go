package template

// DefaultButton is what AddButton appends.
func DefaultButton() Button {
	return Button{Type: ButtonQuickReply, Text: DefaultButtonText}
}

// AddButton appends a default button, creating the BUTTONS block when absent.
// At MaxButtons it returns an unchanged copy.
func AddButton(t Template) Template {
	out := Clone(t)
	i := out.Components.Index(ComponentButtons)
	if i < 0 {
		out.Components = append(out.Components, Buttons{Buttons: []Button{DefaultButton()}})
		return out
	}

	block := out.Components[i].(Buttons)
	if len(block.Buttons) >= MaxButtons {
		return out
	}
	block.Buttons = append(block.Buttons, DefaultButton())
	out.Components[i] = block
	return out
}

// RemoveButton drops the button at index. When the last button goes, the
// whole BUTTONS block goes with it. Missing block or bad index: no-op.
func RemoveButton(t Template, index int) Template {
	out := Clone(t)
	i := out.Components.Index(ComponentButtons)
	if i < 0 {
		return out
	}

	block := out.Components[i].(Buttons)
	if index < 0 || index >= len(block.Buttons) {
		return out
	}
	block.Buttons = append(block.Buttons[:index], block.Buttons[index+1:]...)
	if len(block.Buttons) == 0 {
		out.Components = append(out.Components[:i], out.Components[i+1:]...)
		return out
	}
	out.Components[i] = block
	return out
}

// UpdateButtonText replaces the text of one button. Bad index: no-op.
func UpdateButtonText(t Template, index int, text string) Template {
	out := Clone(t)
	i := out.Components.Index(ComponentButtons)
	if i < 0 {
		return out
	}

	block := out.Components[i].(Buttons)
	if index < 0 || index >= len(block.Buttons) {
		return out
	}
	block.Buttons[index].Text = truncate(text, MaxButtonTextLength)
	out.Components[i] = block
	return out
}

// ButtonCount returns the number of buttons in the BUTTONS block.
func ButtonCount(t Template) int {
	i := t.Components.Index(ComponentButtons)
	if i < 0 {
		return 0
	}
	return len(t.Components[i].(Buttons).Buttons)
}
