package cli

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanyen2/Scholet/internal/application/explorer"
	"github.com/ryanyen2/Scholet/internal/domain/binning"
	"github.com/ryanyen2/Scholet/internal/domain/entity"
	httpapi "github.com/ryanyen2/Scholet/internal/interfaces/http"
	"github.com/ryanyen2/Scholet/internal/interfaces/http/handlers"
	"github.com/ryanyen2/Scholet/pkg/client"
	"github.com/ryanyen2/Scholet/pkg/errors"
)

func startServer(t *testing.T) string {
	t.Helper()
	engine, err := binning.NewEngine(binning.DefaultLadder(), nil)
	require.NoError(t, err)
	svc := explorer.NewService(engine, explorer.Config{}, nil)
	set, stats := entity.NewSet([]entity.Record{
		{ID: "p1", X: 0, Y: 0, Kind: entity.KindPaper},
		{ID: "p3", X: 9, Y: 9, Kind: entity.KindPaper},
	})
	_, err = svc.LoadDataset(context.Background(), set, stats)
	require.NoError(t, err)
	srv := httptest.NewServer(httpapi.NewRouter(httpapi.RouterConfig{
		Explorer: handlers.NewExplorerHandler(svc, nil, 1<<20),
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestApply_Remote(t *testing.T) {
	url := startServer(t)
	messages := writeFile(t, "messages.json", `[
		{"id": 1, "role": "assistant", "instructions": [{"type": "ADD_CONTEXT", "targets": ["p1"]}]},
		{"id": 1, "role": "assistant", "instructions": [{"type": "ADD_CONTEXT", "targets": ["p3"]}]}
	]`)

	out, err := run(t, "-o", "json", "apply", "--server", url, "--messages", messages)
	require.NoError(t, err)
	var v selectionView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.NotEmpty(t, v.SessionID)
	assert.Equal(t, 1, v.Applied)
	assert.Equal(t, 1, v.Duplicates)
	assert.True(t, v.Entries["p1"].Selected)
	assert.NotContains(t, v.Entries, "p3")

	// Same session again: every id has been seen.
	out, err = run(t, "-o", "json", "apply", "--server", url, "--session", v.SessionID, "--messages", messages)
	require.NoError(t, err)
	var again selectionView
	require.NoError(t, json.Unmarshal([]byte(out), &again))
	assert.Equal(t, v.SessionID, again.SessionID)
	assert.Equal(t, 0, again.Applied)
	assert.Equal(t, 2, again.Duplicates)
}

func TestApply_RemoteErrors(t *testing.T) {
	url := startServer(t)
	messages := writeFile(t, "messages.json", `{"id": 1, "role": "user"}`)

	_, err := run(t, "apply", "--session", "0b9e2c4e-8d3c-4a53-9a55-0e7b6b9f4f10", "--messages", messages)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, err = run(t, "apply", "--server", url, "--dataset", "x.csv", "--messages", messages)
	assert.Error(t, err)

	_, err = run(t, "apply", "--server", url, "--session", "0b9e2c4e-8d3c-4a53-9a55-0e7b6b9f4f10", "--messages", messages)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
}
