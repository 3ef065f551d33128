package console

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Exit wraps a formatted message into a cli exit error with the given code.
func Exit(code int, msg string, args ...any) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}
