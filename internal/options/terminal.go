package options

import (
	"fmt"
	"io"
	"strings"
)

// TerminalView prints the options screen. Unless Reveal is set the key is
// masked down to its last four characters.
type TerminalView struct {
	out    io.Writer
	Reveal bool
}

func NewTerminalView(out io.Writer) *TerminalView {
	return &TerminalView{out: out}
}

func (v *TerminalView) SetAPIKeyField(key string) {
	switch {
	case key == "":
		fmt.Fprintln(v.out, "API key: (not set)")
	case v.Reveal:
		fmt.Fprintf(v.out, "API key: %s\n", key)
	default:
		fmt.Fprintf(v.out, "API key: %s\n", mask(key))
	}
}

// SetStatus prints non-empty statuses; clearing the status prints nothing.
func (v *TerminalView) SetStatus(text string) {
	if text != "" {
		fmt.Fprintln(v.out, text)
	}
}

func mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
