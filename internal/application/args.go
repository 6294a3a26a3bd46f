package application

import (
	"fmt"
	"regexp"
)

var keyValuePattern = regexp.MustCompile(`^(?P<name>[a-z_]+)=(?P<value>.*)$`)

// ParseCallArgs splits already-tokenized call arguments into positional
// values and key=value pairs. Once the first key=value pair appears every
// remaining token must also be one; a bare positional after that point is
// a user error.
func ParseCallArgs(tokens []string) (positional []string, keyword map[string]string, err error) {
	keyword = make(map[string]string)

	keywordMode := false
	for _, token := range tokens {
		match := keyValuePattern.FindStringSubmatch(token)
		if match == nil {
			if keywordMode {
				return nil, nil, fmt.Errorf(
					"positional argument %q given after a keyword argument", token)
			}
			positional = append(positional, token)
			continue
		}
		keywordMode = true
		keyword[match[1]] = match[2]
	}

	return positional, keyword, nil
}
