package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	apismith "github.com/Sutto/api-smith"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := apismith.GetVersionInfo()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "apismith v%s\n", info["version"])
		fmt.Fprintf(out, "  Git Commit: %s\n", info["commit"])
		fmt.Fprintf(out, "  Build Date: %s\n", info["build_date"])
		fmt.Fprintf(out, "  Go Version: %s\n", info["go_version"])
		fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
