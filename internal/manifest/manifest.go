// Package manifest parses the server's self-describing API manifest into
// typed command definitions.
package manifest

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/galah-project/galah-cli/internal/domain"
)

// Manifest maps command names to their definitions. It is immutable after
// Parse; a session rebuilds it whenever the cached raw payload changes.
type Manifest map[string]domain.CommandDefinition

type rawCommand struct {
	Name string   `json:"name"`
	Args []rawArg `json:"args,omitempty"`
}

type rawArg struct {
	Name         string  `json:"name"`
	DefaultValue *string `json:"default_value,omitempty"`
	TakesFile    bool    `json:"takes_file,omitempty"`
}

// Parse converts the server's raw manifest payload into a Manifest. A
// payload that is not valid JSON, or whose entries lack names, fails with
// a ManifestFormatError so callers can tell "server sent garbage" apart
// from "network failed".
func Parse(data []byte) (Manifest, error) {
	var commands []rawCommand
	if err := json.Unmarshal(data, &commands); err != nil {
		return nil, &domain.ManifestFormatError{Reason: "payload is not a JSON command list", Err: err}
	}

	result := make(Manifest, len(commands))
	for i, command := range commands {
		if command.Name == "" {
			return nil, &domain.ManifestFormatError{
				Reason: fmt.Sprintf("command entry %d has no name", i),
			}
		}

		params := make([]domain.Parameter, 0, len(command.Args))
		seen := make(map[string]bool, len(command.Args))
		for j, arg := range command.Args {
			if arg.Name == "" {
				return nil, &domain.ManifestFormatError{
					Reason: fmt.Sprintf("argument entry %d of command %q has no name", j, command.Name),
				}
			}
			if seen[arg.Name] {
				return nil, &domain.ManifestFormatError{
					Reason: fmt.Sprintf("command %q declares parameter %q twice", command.Name, arg.Name),
				}
			}
			seen[arg.Name] = true

			kind := domain.ParameterText
			if arg.TakesFile {
				kind = domain.ParameterFile
			}
			params = append(params, domain.Parameter{
				Name:         arg.Name,
				DefaultValue: arg.DefaultValue,
				Kind:         kind,
			})
		}

		result[command.Name] = domain.CommandDefinition{
			Name:   command.Name,
			Params: params,
		}
	}

	return result, nil
}

// Names returns the command names in sorted order, for listings and shell
// completion.
func (m Manifest) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Payload re-derives a raw manifest payload from the parsed definitions,
// sorted by command name. Parsing the result yields an equal Manifest.
func Payload(m Manifest) ([]byte, error) {
	commands := make([]rawCommand, 0, len(m))
	for _, name := range m.Names() {
		def := m[name]
		args := make([]rawArg, 0, len(def.Params))
		for _, p := range def.Params {
			args = append(args, rawArg{
				Name:         p.Name,
				DefaultValue: p.DefaultValue,
				TakesFile:    p.Kind == domain.ParameterFile,
			})
		}
		commands = append(commands, rawCommand{Name: def.Name, Args: args})
	}

	data, err := json.Marshal(commands)
	if err != nil {
		return nil, fmt.Errorf("encode manifest payload: %w", err)
	}
	return data, nil
}
