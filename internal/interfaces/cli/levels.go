package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ryanyen2/Scholet/internal/bootstrap"
)

type levelsView struct {
	Levels  []int   `json:"levels"`
	Default int     `json:"default"`
	ZoomMin float64 `json:"zoom_min"`
	ZoomMax float64 `json:"zoom_max"`
}

func (v levelsView) TableHeaders() []string { return []string{"Level", "Default"} }

func (v levelsView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Levels))
	for _, l := range v.Levels {
		rows = append(rows, []string{strconv.Itoa(l), yesNo(l == v.Default)})
	}
	return rows
}

func newLevelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "Print the resolution ladder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ladder, err := bootstrap.NewLadder(cliCtx.Config.Binning)
			if err != nil {
				return err
			}
			zmin, zmax := ladder.ZoomRange()
			return render(cmd, levelsView{
				Levels:  ladder.Levels(),
				Default: ladder.Default(),
				ZoomMin: zmin,
				ZoomMax: zmax,
			})
		},
	}
}
