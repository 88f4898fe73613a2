package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ryanyen2/Scholet/internal/application/explorer"
	"github.com/ryanyen2/Scholet/internal/bootstrap"
	"github.com/ryanyen2/Scholet/internal/domain/binning"
	"github.com/ryanyen2/Scholet/internal/domain/instruction"
	"github.com/ryanyen2/Scholet/internal/domain/selection"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/pkg/errors"
)

// SourceCLI tags messages replayed from a file.
const SourceCLI = "cli"

type applyOptions struct {
	dataset  string
	messages string
	server   string
	session  string
}

type selectionView struct {
	SessionID  string             `json:"session_id,omitempty"`
	Revision   uint64             `json:"revision"`
	Applied    int                `json:"applied"`
	Duplicates int                `json:"duplicates"`
	Entries    selection.Snapshot `json:"entries"`
}

func (v selectionView) TableHeaders() []string {
	return []string{"Key", "Selected", "Highlighted", "Obscured", "Group"}
}

func (v selectionView) TableRows() [][]string {
	keys := make([]string, 0, len(v.Entries))
	for k := range v.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		f := v.Entries[k]
		selected := yesNo(f.Selected)
		if f.Selected {
			selected = color.GreenString(selected)
		}
		rows = append(rows, []string{k, selected, yesNo(f.Highlighted), yesNo(f.Obscured), f.Group})
	}
	return rows
}

func newApplyCmd() *cobra.Command {
	opts := &applyOptions{}
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Replay chat messages against a dataset and print the selection",
		Long: "Replay a JSON file of chat messages, in order, against a fresh session\n" +
			"and print the resulting selection state. The file holds one message\n" +
			"object or an array of them.\n\n" +
			"With --server the messages are posted to a running API server instead,\n" +
			"into --session or a newly created session.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApply(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.dataset, "dataset", "", "dataset file (default: configured dataset)")
	f.StringVar(&opts.messages, "messages", "", "JSON file of chat messages (required)")
	f.StringVar(&opts.server, "server", "", "API server base URL, e.g. http://localhost:8080")
	f.StringVar(&opts.session, "session", "", "existing session id on --server")
	_ = cmd.MarkFlagRequired("messages")
	cmd.MarkFlagsMutuallyExclusive("server", "dataset")
	return cmd
}

func runApply(cmd *cobra.Command, opts *applyOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	msgs, err := readMessages(opts.messages)
	if err != nil {
		return err
	}
	if opts.server != "" {
		view, err := applyRemote(cmd, cliCtx, opts, msgs)
		if err != nil {
			return err
		}
		return render(cmd, view)
	}
	if opts.session != "" {
		return errors.InvalidParam("--session requires --server")
	}

	set, stats, err := loadDataset(ctx, cliCtx, opts.dataset)
	if err != nil {
		return err
	}
	ladder, err := bootstrap.NewLadder(cliCtx.Config.Binning)
	if err != nil {
		return err
	}
	engine, err := binning.NewEngine(ladder, cliCtx.Logger)
	if err != nil {
		return err
	}
	svc := explorer.NewService(engine, explorer.Config{}, cliCtx.Logger)
	if _, err := svc.LoadDataset(ctx, set, stats); err != nil {
		return err
	}
	sess, err := svc.CreateSession(ctx)
	if err != nil {
		return err
	}

	view := selectionView{}
	for i, m := range msgs {
		res, err := svc.ApplyMessage(ctx, sess.ID, SourceCLI, m)
		if err != nil {
			return errors.Wrap(err, errors.GetCode(err), "message rejected").
				WithDetail("index=" + strconv.Itoa(i))
		}
		if res.Duplicate {
			view.Duplicates++
			cliCtx.Logger.Debug("duplicate message skipped", logging.Int64("message_id", m.ID))
			continue
		}
		view.Applied++
	}

	sel, err := svc.Selection(ctx, sess.ID)
	if err != nil {
		return err
	}
	view.Revision = sel.Revision
	view.Entries = sel.Entries
	return render(cmd, view)
}

// readMessages accepts a single message object or an array of them.
func readMessages(path string) ([]instruction.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read messages file").WithDetail(path)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.InvalidParam("messages file is empty").WithDetail(path)
	}

	var msgs []instruction.Message
	if data[0] == '[' {
		err = json.Unmarshal(data, &msgs)
	} else {
		var m instruction.Message
		err = json.Unmarshal(data, &m)
		msgs = []instruction.Message{m}
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "malformed messages file").WithDetail(path)
	}
	for i, m := range msgs {
		if err := m.Validate(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid message").WithDetail("index=" + strconv.Itoa(i))
		}
	}
	return msgs, nil
}
