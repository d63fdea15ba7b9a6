package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sphinxkit/htk2s3/cmd"
)

func main() {
	cobra.CheckErr(cmd.NewCLI().ExecuteContext(context.Background()))
}
