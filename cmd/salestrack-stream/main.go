// Command salestrack-stream is the Lambda consumer of the table's stream.
// It finishes cascades for profiles and campaigns whose METADATA row was
// soft-deleted.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/salestrack/cmd/fx/storefx"
	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/internal/config"
	"github.com/jacentio/salestrack/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logger()

	k, err := storefx.NewStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("create store", "error", err)
		os.Exit(1)
	}

	handler := stream.NewHandler(k, entity.Registry(), logger, stream.IndexedChildren{
		Index:      entity.IndexByAttribute,
		SortPrefix: entity.SortPrefix(entity.TypeInvite),
	})
	lambda.Start(handler.HandleCascadeDelete)
}
