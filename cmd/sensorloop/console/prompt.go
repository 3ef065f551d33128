package console

import (
	"fmt"
	"strings"

	"github.com/chzyer/readline"
)

const (
	Yes = "y"
	No  = "n"
)

// YesOrNo asks a yes/no question on the terminal, defaulting to yes.
func YesOrNo(question string) (string, error) {
	return Prompt(question, Yes, No)
}

// Prompt reads a line from the terminal. When constraints are given the first
// one is the default, returned on empty or unrecognized input.
func Prompt(question string, constraints ...string) (string, error) {
	if len(constraints) == 0 {
		rl, err := readline.New(question)
		if err != nil {
			return "", err
		}
		return rl.Readline()
	}
	choices := strings.ToUpper(constraints[0])
	if len(constraints) > 1 {
		choices += "/" + strings.Join(constraints[1:], "/")
	}
	rl, err := readline.New(fmt.Sprintf("%s [%s]:", question, choices))
	if err != nil {
		return "", err
	}
	response, err := rl.Readline()
	if err != nil {
		return "", err
	}
	normalized := strings.ToLower(strings.TrimSpace(response))
	for _, c := range constraints {
		if normalized == c {
			return normalized, nil
		}
	}
	return constraints[0], nil
}
