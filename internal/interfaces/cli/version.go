package cli

import (
	"runtime"

	"github.com/spf13/cobra"
)

type versionView struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

func (v versionView) TableHeaders() []string {
	return []string{"Version", "Commit", "Built", "Go"}
}

func (v versionView) TableRows() [][]string {
	return [][]string{{v.Version, v.Commit, v.BuildDate, v.GoVersion}}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return render(cmd, versionView{
				Version:   Version,
				Commit:    GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
			})
		},
	}
}
