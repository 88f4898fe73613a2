package cli

import (
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ryanyen2/Scholet/internal/bootstrap"
	"github.com/ryanyen2/Scholet/internal/domain/entity"
	"github.com/ryanyen2/Scholet/internal/infrastructure/messaging/kafka"
	"github.com/ryanyen2/Scholet/internal/infrastructure/storage/minio"
	"github.com/ryanyen2/Scholet/pkg/errors"
)

type pushOptions struct {
	dataset string
	object  string
}

type pushView struct {
	Object    string `json:"object"`
	Bucket    string `json:"bucket"`
	Version   string `json:"version"`
	Records   int    `json:"records"`
	Published bool   `json:"published"`
}

func (v pushView) TableHeaders() []string {
	return []string{"Object", "Bucket", "Version", "Records", "Published"}
}

func (v pushView) TableRows() [][]string {
	return [][]string{{v.Object, v.Bucket, v.Version, strconv.Itoa(v.Records), yesNo(v.Published)}}
}

func newPushCmd() *cobra.Command {
	opts := &pushOptions{}
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upload a dataset to object storage and announce it",
		Long: "Validate a local dataset, upload it to the configured MinIO bucket and,\n" +
			"when Kafka is enabled, publish a dataset.updated event so servers reload\n" +
			"and workers precompute it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPush(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.dataset, "dataset", "", "local dataset file (required)")
	f.StringVar(&opts.object, "object", "", "object name (default: file base name)")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func runPush(cmd *cobra.Command, opts *pushOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg := cliCtx.Config
	ctx := cmd.Context()

	// Refuse to publish what the servers would reject.
	set, _, err := loadDataset(ctx, cliCtx, opts.dataset)
	if err != nil {
		return err
	}

	client, err := bootstrap.NewMinIO(cfg.MinIO, cliCtx.Logger)
	if err != nil {
		return err
	}
	if client == nil {
		return errors.New(errors.ErrCodeServiceUnavailable, "object storage is not configured").
			WithDetail("set minio.endpoint")
	}
	defer client.Close()

	object, err := minio.NewDatasetSource(client, bootstrap.LoadOptions(cfg.Dataset), cliCtx.Logger).
		Push(ctx, opts.dataset, opts.object)
	if err != nil {
		return err
	}
	view := pushView{Object: object, Bucket: cfg.MinIO.Bucket, Version: set.Version(), Records: set.Len()}

	if cfg.Kafka.Enabled {
		producer, err := bootstrap.NewProducer(cfg.Kafka, cliCtx.Logger)
		if err != nil {
			return err
		}
		defer producer.Close()
		format := cfg.Dataset.Format
		if format == "" || format == string(entity.FormatAuto) {
			format = string(entity.DetectFormat(object))
		}
		err = producer.PublishEvent(ctx, cfg.Kafka.DatasetTopic, kafka.EventDatasetUpdated, object, kafka.DatasetUpdatedPayload{
			Source:  "minio",
			Object:  object,
			Format:  format,
			Version: view.Version,
		})
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "dataset uploaded but event not published")
		}
		view.Published = true
	} else {
		cmd.PrintErrln(color.YellowString("kafka disabled; servers will not reload automatically"))
	}
	return render(cmd, view)
}
