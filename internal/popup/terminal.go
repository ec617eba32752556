package popup

import (
	"fmt"
	"io"
	"sync"
)

const (
	cursor         = "▌"
	loadingMessage = "Working..."
)

// TerminalView renders the popup as lines on a terminal. The answer cursor is
// drawn after the streamed text and erased when the answer ends.
type TerminalView struct {
	out io.Writer

	mu             sync.Mutex
	extractEnabled bool
	loading        bool
	answering      bool
}

func NewTerminalView(out io.Writer) *TerminalView {
	return &TerminalView{out: out}
}

func (v *TerminalView) SetPDFStatus(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "[%s]\n", text)
}

func (v *TerminalView) SetExtractEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.extractEnabled = enabled
}

func (v *TerminalView) ExtractEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.extractEnabled
}

// SetAskEnabled is a no-op: the prompt is only shown between answers.
func (v *TerminalView) SetAskEnabled(bool) {}

// SetLoading prints the loading line when loading starts.
func (v *TerminalView) SetLoading(visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if visible && !v.loading {
		fmt.Fprintln(v.out, loadingMessage)
	}
	v.loading = visible
}

func (v *TerminalView) ShowQuestionSection() {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, "Ask a question about the document (empty line to quit):")
}

func (v *TerminalView) BeginAnswer() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.answering = true
	fmt.Fprint(v.out, cursor)
}

func (v *TerminalView) AppendAnswer(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	// backspace over the cursor, write the token, redraw the cursor
	fmt.Fprintf(v.out, "\b%s%s", text, cursor)
}

func (v *TerminalView) EndAnswer() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.answering {
		fmt.Fprint(v.out, "\b \b\n")
		v.answering = false
	}
}

func (v *TerminalView) SetAnswerText(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.answering {
		fmt.Fprint(v.out, "\b \b\n")
		v.answering = false
	}
	fmt.Fprintln(v.out, text)
}
