package popup

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminalViewStreamsBeforeCursor(t *testing.T) {
	var out bytes.Buffer
	v := NewTerminalView(&out)

	v.SetPDFStatus("PDF detected")
	v.SetExtractEnabled(true)
	assert.True(t, v.ExtractEnabled())

	v.BeginAnswer()
	v.AppendAnswer("The")
	v.AppendAnswer(" end")
	v.EndAnswer()

	assert.Equal(t, "[PDF detected]\n"+cursor+"\bThe"+cursor+"\b end"+cursor+"\b \b\n", out.String())
}

func TestTerminalViewErrorReplacesAnswer(t *testing.T) {
	var out bytes.Buffer
	v := NewTerminalView(&out)

	v.BeginAnswer()
	v.SetAnswerText("Error: boom")
	v.EndAnswer()

	assert.Equal(t, cursor+"\b \b\nError: boom\n", out.String())
}

func TestTerminalViewShowsLoadingOnce(t *testing.T) {
	var out bytes.Buffer
	v := NewTerminalView(&out)

	v.SetLoading(true)
	v.SetLoading(true)
	v.SetLoading(false)
	v.SetLoading(false)
	v.SetLoading(true)

	assert.Equal(t, loadingMessage+"\n"+loadingMessage+"\n", out.String())
}
