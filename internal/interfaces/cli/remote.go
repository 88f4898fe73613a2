package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ryanyen2/Scholet/internal/domain/instruction"
	"github.com/ryanyen2/Scholet/internal/domain/selection"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/pkg/client"
	"github.com/ryanyen2/Scholet/pkg/errors"
	"github.com/ryanyen2/Scholet/pkg/types/api"
)

// clientLogger routes SDK logging into the CLI logger.
type clientLogger struct {
	log logging.Logger
}

func (l clientLogger) Debugf(format string, args ...interface{}) { l.log.Debug(fmt.Sprintf(format, args...)) }
func (l clientLogger) Infof(format string, args ...interface{})  { l.log.Info(fmt.Sprintf(format, args...)) }
func (l clientLogger) Errorf(format string, args ...interface{}) { l.log.Error(fmt.Sprintf(format, args...)) }

func newClient(cliCtx *CLIContext, server string) (*client.Client, error) {
	return client.NewClient(server,
		client.WithLogger(clientLogger{log: cliCtx.Logger}),
		client.WithUserAgent("scholet-cli/"+Version))
}

func toWire(m instruction.Message) (api.Message, error) {
	var out api.Message
	data, err := json.Marshal(m)
	if err != nil {
		return out, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode message")
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode message")
	}
	return out, nil
}

// applyRemote posts msgs to a running server and reads back the selection.
func applyRemote(cmd *cobra.Command, cliCtx *CLIContext, opts *applyOptions, msgs []instruction.Message) (selectionView, error) {
	ctx := cmd.Context()
	view := selectionView{}
	c, err := newClient(cliCtx, opts.server)
	if err != nil {
		return view, err
	}
	sessions := c.Sessions()

	id := opts.session
	if id == "" {
		sess, err := sessions.Create(ctx)
		if err != nil {
			return view, err
		}
		id = sess.ID
		cliCtx.Logger.Info("session created", logging.String("session_id", id))
	}

	for i, m := range msgs {
		wire, err := toWire(m)
		if err != nil {
			return view, err
		}
		res, err := sessions.PostMessage(ctx, id, wire)
		if err != nil {
			return view, errors.Wrap(err, errors.ErrCodeExternalService, "message rejected").
				WithDetail("index=" + strconv.Itoa(i))
		}
		if res.Duplicate {
			view.Duplicates++
			continue
		}
		view.Applied++
	}

	sel, err := sessions.Selection(ctx, id)
	if err != nil {
		return view, err
	}
	view.SessionID = id
	view.Revision = sel.Revision
	view.Entries = make(selection.Snapshot, len(sel.Entries))
	for k, f := range sel.Entries {
		view.Entries[k] = selection.Facets{Selected: f.Selected, Highlighted: f.Highlighted, Obscured: f.Obscured, Group: f.Group}
	}
	return view, nil
}
