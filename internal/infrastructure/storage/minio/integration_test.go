//go:build integration

package minio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ryanyen2/Scholet/internal/domain/entity"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
)

const envIntegration = "SCHOLET_INTEGRATION_TEST"

func startMinIO(t *testing.T) *Client {
	t.Helper()
	if os.Getenv(envIntegration) == "" {
		t.Skipf("skipping integration test: set %s=1 to enable", envIntegration)
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Cmd:          []string{"server", "/data"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "scholet",
				"MINIO_ROOT_PASSWORD": "scholet-secret",
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	client, err := NewClient(&Config{
		Endpoint:  fmt.Sprintf("%s:%s", host, port.Port()),
		AccessKey: "scholet",
		SecretKey: "scholet-secret",
		Bucket:    "datasets",
	}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIntegration_PushAndLoad(t *testing.T) {
	client := startMinIO(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "papers.csv")
	require.NoError(t, os.WriteFile(path, []byte("paper_id,umap_x,umap_y\np1,0,0\np2,1,1\n"), 0o600))

	src := NewDatasetSource(client, entity.LoadOptions{}, nil)
	object, err := src.Push(ctx, path, "")
	require.NoError(t, err)
	assert.Equal(t, "papers.csv", object)

	set, stats, err := src.Load(ctx, object, entity.FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, 2, stats.Accepted)

	_, _, err = src.Load(ctx, "missing.csv", entity.FormatAuto)
	assert.Error(t, err)
}
