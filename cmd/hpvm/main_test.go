package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Shell_EditorCmdFallsBackPastBlanks(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "")

	sh := &shell{editor: "   "}
	assert.Equal(t, "vi", sh.editorCmd(), "whitespace preferences never win")

	t.Setenv("EDITOR", "nano")
	assert.Equal(t, "nano", sh.editorCmd())

	t.Setenv("VISUAL", " \t ")
	assert.Equal(t, "nano", sh.editorCmd(), "a blank VISUAL does not shadow EDITOR")

	sh.editor = "code --wait"
	assert.Equal(t, "code --wait", sh.editorCmd(), "an explicit editor keeps its arguments")
}
