package command

import (
	"fmt"

	"github.com/urfave/cli"
)

func cmdVersion(cliCtx *cli.Context) error {
	fmt.Println(cliCtx.App.Version)
	return nil
}
