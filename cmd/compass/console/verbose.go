package console

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/compass/snsctx"
)

// Context returns the command context carrying the --verbose flag.
func Context(c *cli.Context) context.Context {
	return snsctx.SetVerbose(c.Context, c.Bool("verbose"))
}
