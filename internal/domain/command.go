// Package domain holds the protocol-level types of the Galah API client:
// command definitions parsed from the server's manifest, the argument
// binding algorithm, call outcomes, and the error taxonomy shared by the
// session and the front ends.
package domain

import (
	"fmt"
	"strings"
)

// ParameterKind distinguishes plain text parameters from parameters that
// are bound to a local file path and streamed as upload content.
type ParameterKind string

const (
	ParameterText ParameterKind = "text"
	ParameterFile ParameterKind = "file"
)

// Parameter is one declared parameter of a server command. A parameter
// either has no default (required) or a fixed textual default; defaults
// are kept verbatim as text, never coerced.
type Parameter struct {
	Name         string
	DefaultValue *string
	Kind         ParameterKind
}

// Required reports whether the parameter must be bound by the caller.
func (p Parameter) Required() bool {
	return p.DefaultValue == nil
}

func (p Parameter) String() string {
	var b strings.Builder
	b.WriteString(p.Name)
	if p.Kind == ParameterFile {
		b.WriteString(":file")
	}
	if p.DefaultValue != nil {
		fmt.Fprintf(&b, " = %q", *p.DefaultValue)
		return "[" + b.String() + "]"
	}
	return b.String()
}

// CommandDefinition is an immutable description of one remote procedure:
// its server-assigned name and its parameters in declaration order. The
// order defines positional binding precedence. Parameter names are unique
// within one definition.
type CommandDefinition struct {
	Name   string
	Params []Parameter
}

// Usage renders the definition for user display, e.g.
//
//	submit assignment [late = "false"]
func (d CommandDefinition) Usage() string {
	parts := make([]string, 0, len(d.Params)+1)
	parts = append(parts, d.Name)
	for _, p := range d.Params {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, " ")
}

// Resolve binds positional and keyword arguments to the definition's
// parameters and returns the full name-to-value mapping. It is a pure
// function: no I/O, no mutation of the definition.
//
// Positional arguments consume parameters in declaration order. Keyword
// arguments must name a declared parameter and must not rebind one already
// consumed positionally. Unbound parameters fall back to their default;
// any parameter still missing afterwards fails the whole resolution.
// Either every parameter binds or an error is returned, never a partial
// mapping.
func (d CommandDefinition) Resolve(positional []string, keyword map[string]string) (map[string]string, error) {
	given := len(positional) + len(keyword)

	if len(positional) > len(d.Params) {
		return nil, &ArityError{
			Command:  d.Name,
			Expected: len(d.Params),
			Given:    given,
		}
	}

	bound := make(map[string]string, len(d.Params))
	positionallyBound := make(map[string]bool, len(positional))
	for i, value := range positional {
		name := d.Params[i].Name
		bound[name] = value
		positionallyBound[name] = true
	}

	declared := make(map[string]bool, len(d.Params))
	for _, p := range d.Params {
		declared[p.Name] = true
	}

	for name, value := range keyword {
		if !declared[name] {
			return nil, &UnknownParameterError{Command: d.Name, Parameter: name}
		}
		if positionallyBound[name] {
			return nil, &DuplicateBindingError{Command: d.Name, Parameter: name}
		}
		bound[name] = value
	}

	missing := 0
	for _, p := range d.Params {
		if _, ok := bound[p.Name]; ok {
			continue
		}
		if p.DefaultValue != nil {
			bound[p.Name] = *p.DefaultValue
			continue
		}
		missing++
	}

	if missing > 0 {
		return nil, &ArityError{
			Command:  d.Name,
			Expected: len(d.Params),
			Given:    given,
			Missing:  missing,
		}
	}

	return bound, nil
}

// FileParams returns the names of the definition's file-kind parameters.
func (d CommandDefinition) FileParams() []string {
	var names []string
	for _, p := range d.Params {
		if p.Kind == ParameterFile {
			names = append(names, p.Name)
		}
	}
	return names
}
