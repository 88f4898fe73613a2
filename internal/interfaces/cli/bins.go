package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ryanyen2/Scholet/internal/bootstrap"
	"github.com/ryanyen2/Scholet/internal/domain/binning"
	"github.com/ryanyen2/Scholet/internal/domain/entity"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/pkg/errors"
)

type binsOptions struct {
	dataset string
	level   int
	zoom    float64
	column  string
	members int
}

type binsView struct {
	Level   int             `json:"level"`
	Column  string          `json:"column,omitempty"`
	Version string          `json:"dataset_version"`
	Groups  []binning.Group `json:"groups"`

	members int
}

func (v binsView) TableHeaders() []string {
	h := []string{"Bin", "Count", "Centroid", "Members"}
	if v.Column != "" {
		h = append(h, v.Column)
	}
	return h
}

func (v binsView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Groups))
	for _, g := range v.Groups {
		members := g.Members
		more := ""
		if v.members > 0 && len(members) > v.members {
			more = fmt.Sprintf(" (+%d)", len(members)-v.members)
			members = members[:v.members]
		}
		row := []string{
			g.Key.String(),
			strconv.Itoa(g.Count()),
			fmt.Sprintf("%.3f,%.3f", g.Centroid.X, g.Centroid.Y),
			truncate(strings.Join(members, ",")+more, 60),
		}
		if v.Column != "" {
			dominant := ""
			if g.Summary != nil {
				dominant = color.CyanString(g.Summary.Dominant)
			}
			row = append(row, dominant)
		}
		rows = append(rows, row)
	}
	return rows
}

func newBinsCmd() *cobra.Command {
	opts := &binsOptions{}
	cmd := &cobra.Command{
		Use:   "bins",
		Short: "Bin a dataset at one ladder level",
		Long: "Bin a dataset at --level, or at the level --zoom maps to, and print\n" +
			"each non-empty bin. Without either flag the default level is used.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBins(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.dataset, "dataset", "", "dataset file (default: configured dataset)")
	f.IntVar(&opts.level, "level", 0, "ladder level")
	f.Float64Var(&opts.zoom, "zoom", 0, "viewport zoom mapped onto the ladder")
	f.StringVar(&opts.column, "column", "", "summarize bins by cluster, faculty, department or focus_tag")
	f.IntVar(&opts.members, "members", 5, "members listed per bin in table output (0 for all)")
	cmd.MarkFlagsMutuallyExclusive("level", "zoom")
	return cmd
}

func runBins(cmd *cobra.Command, opts *binsOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if opts.column != "" && !entity.IsSelectableColumn(opts.column) {
		return errors.InvalidParam("column cannot be summarized").WithDetail(opts.column)
	}

	ladder, err := bootstrap.NewLadder(cliCtx.Config.Binning)
	if err != nil {
		return err
	}
	level := ladder.Default()
	switch {
	case cmd.Flags().Changed("level"):
		if err := ladder.Validate(opts.level); err != nil {
			return err
		}
		level = opts.level
	case cmd.Flags().Changed("zoom"):
		if level, err = ladder.SelectLevel(opts.zoom); err != nil {
			return err
		}
	}

	set, _, err := loadDataset(cmd.Context(), cliCtx, opts.dataset)
	if err != nil {
		return err
	}
	engine, err := binning.NewEngine(ladder, cliCtx.Logger)
	if err != nil {
		return err
	}

	binOpts := []binning.BinOption{}
	if bounds, ok := binning.BoundsOf(set.Records()); ok {
		binOpts = append(binOpts, binning.WithBounds(bounds))
	}
	if opts.column != "" {
		binOpts = append(binOpts, binning.WithSummary(opts.column))
	}
	groups, err := engine.ComputeBins(set.Records(), level, binOpts...)
	if err != nil {
		return err
	}
	cliCtx.Logger.Debug("bins computed", logging.Int("level", level), logging.Int("groups", len(groups)))

	return render(cmd, binsView{
		Level:   level,
		Column:  opts.column,
		Version: set.Version(),
		Groups:  groups,
		members: opts.members,
	})
}
