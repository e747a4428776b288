package cmd

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	testlogr "github.com/polysight-org/polysight/internal/testutils/logger"
)

type testConsoleWriter struct {
	lines []string
}

func (w *testConsoleWriter) Println(a ...any) {
	s := fmt.Sprintln(a...)
	w.lines = append(w.lines, s[:len(s)-1]) // remove newline
}

func (w *testConsoleWriter) Print(a ...any) {
	w.Println(a...)
}

/*
execCommand runs the CLI with "command" split on spaces and "extra" arguments
appended as is, the output of the command is returned.
*/
func execCommand(t *testing.T, homeDir, command string, extra ...string) (*testConsoleWriter, error) {
	t.Helper()
	outputWriter := &testConsoleWriter{}
	consoleWriter = outputWriter

	app := New(testlogr.LoggerBuilder(t))
	args := append(strings.Split(command+" --home "+homeDir, " "), extra...)
	app.baseCmd.SetArgs(args)
	return outputWriter, app.Execute(context.Background())
}

func verifyStdout(t *testing.T, consoleWriter *testConsoleWriter, expectedLines ...string) {
	t.Helper()
	joined := strings.Join(consoleWriter.lines, "\n")
	for _, expectedLine := range expectedLines {
		require.Contains(t, joined, expectedLine)
	}
}

// lineWithPrefix returns the first output line which starts with "prefix", with the prefix trimmed.
func lineWithPrefix(t *testing.T, consoleWriter *testConsoleWriter, prefix string) string {
	t.Helper()
	for _, l := range consoleWriter.lines {
		if s, ok := strings.CutPrefix(l, prefix); ok {
			return s
		}
	}
	t.Fatalf("no line with prefix %q in output:\n%s", prefix, strings.Join(consoleWriter.lines, "\n"))
	return ""
}
