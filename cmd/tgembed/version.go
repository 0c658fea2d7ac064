package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// Build information variables (set by Makefile during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitBranch = "unknown"
	GitCommit = "unknown"
)

var versionJSON bool

// VersionOutput represents the version output structure
type VersionOutput struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitBranch string `json:"git_branch"`
	GitCommit string `json:"git_commit"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display version number, build time, git branch, and commit ID",
	RunE: func(cmd *cobra.Command, args []string) error {
		version := VersionOutput{
			Version:   Version,
			BuildTime: BuildTime,
			GitBranch: GitBranch,
			GitCommit: GitCommit,
		}

		out := cmd.OutOrStdout()
		if versionJSON {
			output, err := json.MarshalIndent(version, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal json: %w", err)
			}
			fmt.Fprintln(out, string(output))
			return nil
		}

		fmt.Fprintln(out, "tgembed version information:")
		fmt.Fprintf(out, "  Version:   %s\n", version.Version)
		fmt.Fprintf(out, "  BuildTime: %s\n", version.BuildTime)
		fmt.Fprintf(out, "  GitBranch: %s\n", version.GitBranch)
		fmt.Fprintf(out, "  GitCommit: %s\n", version.GitCommit)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output in JSON format")
}
