package trim

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineStreamYieldsLinesOnce(t *testing.T) {
	s := NewLineStream(strings.NewReader("one\ntwo\r\nthree"), 0)

	var got []string
	for line := range s.Lines() {
		got = append(got, line)
	}
	require.NoError(t, s.Err())
	assert.Equal(t, []string{"one", "two", "three"}, got)

	for range s.Lines() {
		t.Fatal("second pass should yield nothing")
	}
}

func TestLineStreamStopsEarly(t *testing.T) {
	s := NewLineStream(strings.NewReader("a\nb\nc\n"), 0)
	var got []string
	for line := range s.Lines() {
		got = append(got, line)
		if line == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestLineStreamIsBounded(t *testing.T) {
	s := NewLineStream(strings.NewReader(strings.Repeat("x", 64)+"\n"), 16)
	for range s.Lines() {
	}
	assert.True(t, errors.Is(s.Err(), bufio.ErrTooLong))
}

func TestScanErrors(t *testing.T) {
	output := "Read1 before filtering:\nERROR: something failed\nok\nfastp: ERROR: second one\n"
	assert.Equal(t, []string{"ERROR: something failed", "ERROR: second one"}, ScanErrors(output))
	assert.Empty(t, ScanErrors("all good\n"))
}

func TestExecRunnerStreamsCombinedOutput(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	var seen []string
	r := &execRunner{maxLine: MaxLineSize}
	res, err := r.Run(context.Background(), "sh",
		[]string{"-c", "echo out; echo 'ERROR: bad input' 1>&2; exit 3"},
		func(line string) { seen = append(seen, line) })

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "err = %v", err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, []string{"out", "ERROR: bad input"}, seen)
	assert.Equal(t, "out\nERROR: bad input\n", res.Output)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := &execRunner{}
	res, err := r.Run(context.Background(), "/nonexistent/fastp", nil, nil)
	require.Error(t, err)
	assert.Equal(t, -1, res.ExitCode)
}
