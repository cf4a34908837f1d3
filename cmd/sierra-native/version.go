package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"sierranative/internal/builders"
	"sierranative/internal/executor"
	"sierranative/internal/version"
)

// buildInfo is what `version --format json` prints.
type buildInfo struct {
	Tool            string `json:"tool"`
	Version         string `json:"version"`
	GoVersion       string `json:"go"`
	ArtifactVersion int    `json:"artifact_version"`
	Types           int    `json:"types"`
	Libfuncs        int    `json:"libfuncs"`
	GitCommit       string `json:"git_commit,omitempty"`
	GitMessage      string `json:"git_message,omitempty"`
	BuildDate       string `json:"build_date,omitempty"`
}

var (
	versionFormat string
	versionFull   bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionFull, "full", false, "include commit and build date")
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the compiler version and supported catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentBuild(versionFull)
		switch strings.ToLower(versionFormat) {
		case "pretty":
			renderBuildPretty(cmd.OutOrStdout(), info)
			return nil
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		return fmt.Errorf("unsupported format %q (must be pretty or json)", versionFormat)
	},
}

func currentBuild(full bool) buildInfo {
	catalog := builders.Core()
	info := buildInfo{
		Tool:            "sierra-native",
		Version:         orUnknown(version.Version),
		GoVersion:       runtime.Version(),
		ArtifactVersion: executor.ArtifactVersion,
		Types:           len(catalog.TypeIDs()),
		Libfuncs:        len(catalog.LibfuncIDs()),
	}
	if full {
		info.GitCommit = orUnknown(version.GitCommit)
		info.GitMessage = orUnknown(version.GitMessage)
		info.BuildDate = orUnknown(version.BuildDate)
	}
	return info
}

func renderBuildPretty(out io.Writer, info buildInfo) {
	fmt.Fprintf(out, "%s %s (%s)\n", info.Tool, version.Colored(info.Version), info.GoVersion)
	fmt.Fprintf(out, "artifact format v%d, %d generic types, %d generic libfuncs\n",
		info.ArtifactVersion, info.Types, info.Libfuncs)
	if info.GitCommit != "" {
		fmt.Fprintf(out, "commit: %s %s\n", info.GitCommit, info.GitMessage)
		fmt.Fprintf(out, "built:  %s\n", info.BuildDate)
	}
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}
