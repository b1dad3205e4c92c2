package nav

import "github.com/gdamore/tcell/v2"

// Field is a single-line text input with a rune cursor.
type Field struct {
	text   []rune
	cursor int
}

// NewField returns a field holding s with the cursor at the end.
func NewField(s string) Field {
	f := Field{}
	f.Set(s)
	return f
}

func (f *Field) String() string { return string(f.text) }
func (f *Field) Len() int       { return len(f.text) }
func (f *Field) Cursor() int    { return f.cursor }
func (f *Field) Empty() bool    { return len(f.text) == 0 }

// Set replaces the contents and moves the cursor to the end.
func (f *Field) Set(s string) {
	f.text = []rune(s)
	f.cursor = len(f.text)
}

func (f *Field) Clear() {
	f.text = f.text[:0]
	f.cursor = 0
}

func (f *Field) Insert(r rune) {
	f.text = append(f.text, 0)
	copy(f.text[f.cursor+1:], f.text[f.cursor:])
	f.text[f.cursor] = r
	f.cursor++
}

// Backspace removes the rune before the cursor.
func (f *Field) Backspace() bool {
	if f.cursor == 0 {
		return false
	}
	f.text = append(f.text[:f.cursor-1], f.text[f.cursor:]...)
	f.cursor--
	return true
}

// Delete removes the rune under the cursor.
func (f *Field) Delete() bool {
	if f.cursor >= len(f.text) {
		return false
	}
	f.text = append(f.text[:f.cursor], f.text[f.cursor+1:]...)
	return true
}

// Edit applies a text-editing key. It returns false for keys it does not
// handle so callers can treat them as navigation.
func (f *Field) Edit(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyRune:
		f.Insert(ev.Rune())
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		f.Backspace()
	case tcell.KeyDelete:
		f.Delete()
	case tcell.KeyLeft:
		if f.cursor > 0 {
			f.cursor--
		}
	case tcell.KeyRight:
		if f.cursor < len(f.text) {
			f.cursor++
		}
	case tcell.KeyHome:
		f.cursor = 0
	case tcell.KeyEnd:
		f.cursor = len(f.text)
	default:
		return false
	}
	return true
}
