package cli

import (
	"context"

	"github.com/ryanyen2/Scholet/internal/bootstrap"
	"github.com/ryanyen2/Scholet/internal/domain/entity"
	"github.com/ryanyen2/Scholet/internal/infrastructure/storage/minio"
)

// loadDataset reads path when it is set and the configured dataset
// otherwise. Object storage is only dialed for a configured minio dataset.
func loadDataset(ctx context.Context, cliCtx *CLIContext, path string) (*entity.Set, entity.Stats, error) {
	cfg := cliCtx.Config
	ref := bootstrap.RefFromConfig(cfg.Dataset)
	if path != "" {
		ref = bootstrap.DatasetRef{Source: "file", Path: path, Format: cfg.Dataset.Format}
	}

	var remote *minio.DatasetSource
	if ref.Source == "minio" {
		client, err := bootstrap.NewMinIO(cfg.MinIO, cliCtx.Logger)
		if err != nil {
			return nil, entity.Stats{}, err
		}
		if client != nil {
			defer client.Close()
			remote = minio.NewDatasetSource(client, bootstrap.LoadOptions(cfg.Dataset), cliCtx.Logger)
		}
	}
	return bootstrap.NewDatasetLoader(cfg.Dataset, remote, cliCtx.Logger).Load(ctx, ref)
}
