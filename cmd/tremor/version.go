package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build %s, %s %s/%s)\n",
				appName, Version, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return err
		},
	}
}
