// Package shell implements the interactive mode: a read-dispatch loop
// that issues API calls against one authenticated session.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/galah-project/galah-cli/internal/application"
	"github.com/galah-project/galah-cli/internal/domain"
	"github.com/galah-project/galah-cli/internal/manifest"
)

// Caller is the slice of the session the shell needs: known commands and
// the ability to invoke one.
type Caller interface {
	Call(ctx context.Context, command string, positional []string, keyword map[string]string) (domain.Outcome, error)
	Commands() manifest.Manifest
}

// Shell runs the interactive loop. Download carries a DownloadReady
// outcome to completion; the frontend supplies it so it can wire
// cancellation and progress rendering.
type Shell struct {
	Caller   Caller
	Download func(ctx context.Context, ready domain.DownloadReady) (string, error)
	In       io.Reader
	Out      io.Writer

	prompt string
}

var promptStyle = lipgloss.NewStyle().Bold(true)

// Run reads lines until EOF or an exit command. Every failure inside one
// line is reported and the loop continues; only reader errors end it.
func (s *Shell) Run(ctx context.Context) error {
	if s.prompt == "" {
		s.prompt = promptStyle.Render(">") + " "
	}

	fmt.Fprintln(s.Out, "Welcome to the Galah API client shell.")

	reader := bufio.NewScanner(s.In)
	for {
		fmt.Fprint(s.Out, s.prompt)
		if !reader.Scan() {
			fmt.Fprintln(s.Out)
			return reader.Err()
		}

		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}

		tokens, err := SplitLine(line)
		if err != nil {
			fmt.Fprintf(s.Out, "error: %v\n", err)
			continue
		}
		command, rest := tokens[0], tokens[1:]

		switch command {
		case "exit", "quit":
			return nil
		case "help":
			s.printHelp(rest)
			continue
		}

		s.dispatch(ctx, command, rest)
	}
}

func (s *Shell) dispatch(ctx context.Context, command string, rest []string) {
	positional, keyword, err := application.ParseCallArgs(rest)
	if err != nil {
		fmt.Fprintf(s.Out, "error: %v\n", err)
		return
	}

	outcome, err := s.Caller.Call(ctx, command, positional, keyword)
	if err != nil {
		fmt.Fprintf(s.Out, "error: %v\n", err)
		return
	}

	switch result := outcome.(type) {
	case domain.TextResult:
		fmt.Fprintln(s.Out, result.Body)
	case domain.DownloadReady:
		path, err := s.Download(ctx, result)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(s.Out, "Download cancelled by you.")
				return
			}
			fmt.Fprintf(s.Out, "error: %v\n", err)
			return
		}
		fmt.Fprintf(s.Out, "File saved to %s.\n", path)
	}
}

func (s *Shell) printHelp(args []string) {
	commands := s.Caller.Commands()
	if len(args) > 0 {
		def, ok := commands[args[0]]
		if !ok {
			fmt.Fprintf(s.Out, "No help for %s.\n", args[0])
			return
		}
		fmt.Fprintln(s.Out, def.Usage())
		return
	}
	for _, name := range commands.Names() {
		fmt.Fprintln(s.Out, commands[name].Usage())
	}
}

// SplitLine tokenizes a shell line the way a POSIX shell would: spaces
// separate tokens, single and double quotes group them, a backslash
// escapes the next character outside single quotes.
func SplitLine(line string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inToken := false

	const (
		bare = iota
		single
		double
	)
	state := bare
	escaped := false

	for _, r := range line {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		switch state {
		case bare:
			switch r {
			case '\\':
				escaped = true
				inToken = true
			case '\'':
				state = single
				inToken = true
			case '"':
				state = double
				inToken = true
			case ' ', '\t':
				if inToken {
					tokens = append(tokens, current.String())
					current.Reset()
					inToken = false
				}
			default:
				current.WriteRune(r)
				inToken = true
			}
		case single:
			if r == '\'' {
				state = bare
			} else {
				current.WriteRune(r)
			}
		case double:
			switch r {
			case '"':
				state = bare
			case '\\':
				escaped = true
			default:
				current.WriteRune(r)
			}
		}
	}

	if escaped || state != bare {
		return nil, fmt.Errorf("unterminated quote in %q", line)
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return tokens, nil
}
