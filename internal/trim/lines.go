package trim

import (
	"bufio"
	"io"
	"iter"
	"regexp"
)

// MaxLineSize bounds a single line of trimmer output.
const MaxLineSize = 1 << 20

// LineStream reads newline-delimited output incrementally. It is consumed once.
type LineStream struct {
	sc   *bufio.Scanner
	used bool
}

// NewLineStream wraps r with a scanner whose buffer never grows past maxLine bytes.
func NewLineStream(r io.Reader, maxLine int) *LineStream {
	if maxLine <= 0 {
		maxLine = MaxLineSize
	}
	sc := bufio.NewScanner(r)
	initial := 64 * 1024
	if initial > maxLine {
		initial = maxLine
	}
	sc.Buffer(make([]byte, 0, initial), maxLine)
	return &LineStream{sc: sc}
}

// Lines yields each line without its terminator until the reader is exhausted.
// Ranging a second time yields nothing.
func (s *LineStream) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		if s.used {
			return
		}
		s.used = true
		for s.sc.Scan() {
			if !yield(s.sc.Text()) {
				return
			}
		}
	}
}

// Err returns the first non-EOF error hit while scanning.
func (s *LineStream) Err() error {
	return s.sc.Err()
}

var errorLinePattern = regexp.MustCompile(`ERROR.*`)

// ScanErrors returns every error marker in output, from the marker to end of line.
func ScanErrors(output string) []string {
	return errorLinePattern.FindAllString(output, -1)
}
