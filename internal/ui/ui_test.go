package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessagesCarryText(t *testing.T) {
	assert.Contains(t, SuccessMsg("published %d lines", 3), "published 3 lines")
	assert.Contains(t, WarnMsg("cancelled"), "cancelled")
	assert.Contains(t, ErrorMsg("stage %s", "fetch"), "stage fetch")
	assert.Contains(t, InfoMsg("run %s", "abc"), "run abc")
	assert.Contains(t, ProbeLine("1.2.3.4 translate.x.com"), "1.2.3.4 translate.x.com")
}

func TestKeyValuesSkipsEmpty(t *testing.T) {
	out := KeyValues("  ", KV("gist", "https://gist.github.com/x"), KV("raw", ""), KV("subscribe", "https://s"))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "https://gist.github.com/x")
	assert.NotContains(t, out, "raw:")
}
