package probe

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

const (
	// HostsPrompt asks whether to write the result into the hosts file. It
	// is printed without a trailing newline.
	HostsPrompt = "是否设置到Host文件(Y:设置)"
	// AckLine follows a hosts write; the probe then waits for enter.
	AckLine = "设置成功"
)

var ansiSeq = regexp.MustCompile(`\x1b(?:\[[0-?]*[ -/]*[@-~]|\][^\x07\x1b]*(?:\x07|\x1b\\)|[@-Z\\-_])`)

// Clean strips terminal escapes and carriage-return redraws from one line.
func Clean(line string) string {
	line = ansiSeq.ReplaceAllString(line, "")
	line = strings.TrimRight(line, "\r")
	if i := strings.LastIndexByte(line, '\r'); i >= 0 {
		line = line[i+1:]
	}
	return line
}

// SplitLines returns a bufio.SplitFunc that yields newline-terminated lines,
// plus any unterminated chunk that ends with one of prompts.
func SplitLines(prompts ...string) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			return i + 1, data[:i], nil
		}
		if endsWithPrompt(data, prompts) {
			return len(data), data, nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

func endsWithPrompt(data []byte, prompts []string) bool {
	pending := strings.TrimRight(Clean(string(data)), " \t")
	for _, p := range prompts {
		if p != "" && strings.HasSuffix(pending, p) {
			return true
		}
	}
	return false
}
