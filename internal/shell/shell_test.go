package shell

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galah-project/galah-cli/internal/domain"
	"github.com/galah-project/galah-cli/internal/manifest"
)

type fakeCaller struct {
	calls   []recordedCall
	outcome domain.Outcome
	err     error
}

type recordedCall struct {
	command    string
	positional []string
	keyword    map[string]string
}

func (f *fakeCaller) Call(_ context.Context, command string, positional []string, keyword map[string]string) (domain.Outcome, error) {
	f.calls = append(f.calls, recordedCall{command: command, positional: positional, keyword: keyword})
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

func (f *fakeCaller) Commands() manifest.Manifest {
	defaultValue := "false"
	return manifest.Manifest{
		"submit": domain.CommandDefinition{
			Name: "submit",
			Params: []domain.Parameter{
				{Name: "assignment", Kind: domain.ParameterText},
				{Name: "late", DefaultValue: &defaultValue, Kind: domain.ParameterText},
			},
		},
		"whoami": domain.CommandDefinition{Name: "whoami"},
	}
}

func runShell(t *testing.T, caller *fakeCaller, input string) string {
	t.Helper()

	var out strings.Builder
	sh := &Shell{
		Caller: caller,
		Download: func(context.Context, domain.DownloadReady) (string, error) {
			return "/tmp/saved", nil
		},
		In:  strings.NewReader(input),
		Out: &out,
	}
	require.NoError(t, sh.Run(context.Background()))
	return out.String()
}

func TestShellDispatchesCallAndPrintsText(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{outcome: domain.TextResult{Body: "submitted"}}
	output := runShell(t, caller, "submit hw1 late=true\nexit\n")

	require.Len(t, caller.calls, 1)
	assert.Equal(t, "submit", caller.calls[0].command)
	assert.Equal(t, []string{"hw1"}, caller.calls[0].positional)
	assert.Equal(t, map[string]string{"late": "true"}, caller.calls[0].keyword)
	assert.Contains(t, output, "submitted")
}

func TestShellRunsDownloadOutcome(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{outcome: domain.DownloadReady{URL: "http://x/files/1", SuggestedName: "report.pdf"}}
	output := runShell(t, caller, "whoami\nquit\n")

	assert.Contains(t, output, "File saved to /tmp/saved.")
}

func TestShellReportsCancelledDownload(t *testing.T) {
	t.Parallel()

	var out strings.Builder
	sh := &Shell{
		Caller: &fakeCaller{outcome: domain.DownloadReady{URL: "http://x", SuggestedName: "f"}},
		Download: func(context.Context, domain.DownloadReady) (string, error) {
			return "", context.Canceled
		},
		In:  strings.NewReader("whoami\nexit\n"),
		Out: &out,
	}
	require.NoError(t, sh.Run(context.Background()))
	assert.Contains(t, out.String(), "Download cancelled by you.")
}

func TestShellErrorKeepsLoopAlive(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{err: &domain.UnknownCommandError{Command: "bogus"}}
	output := runShell(t, caller, "bogus\nbogus again\nexit\n")

	assert.Len(t, caller.calls, 2)
	assert.Contains(t, output, "not a known command")
}

func TestShellHelpListsUsage(t *testing.T) {
	t.Parallel()

	output := runShell(t, &fakeCaller{}, "help\nexit\n")
	assert.Contains(t, output, `submit assignment [late = "false"]`)
	assert.Contains(t, output, "whoami")

	output = runShell(t, &fakeCaller{}, "help submit\nexit\n")
	assert.Contains(t, output, `submit assignment [late = "false"]`)

	output = runShell(t, &fakeCaller{}, "help nonsense\nexit\n")
	assert.Contains(t, output, "No help for nonsense.")
}

func TestShellIgnoresEmptyLinesAndExitsOnEOF(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{outcome: domain.TextResult{Body: "ok"}}
	output := runShell(t, caller, "\n   \n")

	assert.Empty(t, caller.calls)
	assert.Contains(t, output, "Welcome")
}

func TestShellPositionalAfterKeywordIsReportedNotDispatched(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{}
	output := runShell(t, caller, "submit late=true hw1\nexit\n")

	assert.Empty(t, caller.calls)
	assert.Contains(t, output, "error:")
}

func TestSplitLineHandlesQuoting(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		line string
		want []string
	}{
		{name: "plain", line: "submit hw1", want: []string{"submit", "hw1"}},
		{name: "double quotes", line: `submit "hw one"`, want: []string{"submit", "hw one"}},
		{name: "single quotes", line: "submit 'hw one'", want: []string{"submit", "hw one"}},
		{name: "escape", line: `submit hw\ one`, want: []string{"submit", "hw one"}},
		{name: "keyword with spaces", line: `submit msg="late because reasons"`, want: []string{"submit", "msg=late because reasons"}},
		{name: "collapsed whitespace", line: "  submit \t hw1  ", want: []string{"submit", "hw1"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SplitLine(tc.line)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSplitLineRejectsUnterminatedQuote(t *testing.T) {
	t.Parallel()

	_, err := SplitLine(`submit "oops`)
	require.Error(t, err)
}
