package console

import (
	"fmt"
	"strings"

	"github.com/chzyer/readline"
)

// Confirm asks a yes/no question. Anything but an explicit yes, including an
// empty line, is a no.
func Confirm(question string) (bool, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: fmt.Sprintf("%s [y/N]: ", question),
		Stdout: stdout,
		Stderr: stderr,
	})
	if err != nil {
		return false, err
	}
	defer func() { _ = rl.Close() }()
	answer, err := rl.Readline()
	if err != nil {
		return false, err
	}
	return isYes(answer), nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
