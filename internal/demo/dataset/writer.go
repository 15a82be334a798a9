package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/parquet-go/parquet-go"

	"github.com/shoptalk/shoptalk/internal/storage"
)

// Writer publishes generated rows to the object store as numbered
// parquet parts under the dataset prefix the warehouse attaches from.
type Writer struct {
	cfg       Config
	log       *slog.Logger
	store     storage.ObjectStore
	generator *Generator
}

func NewWriter(cfg Config, logger *slog.Logger, store storage.ObjectStore) (*Writer, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if cfg.Rows <= 0 || cfg.PartSize <= 0 {
		return nil, fmt.Errorf("rows and part size must be > 0")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Writer{
		cfg:       cfg,
		log:       logger,
		store:     store,
		generator: NewGenerator(cfg.Seed),
	}, nil
}

// Run generates and uploads the full dataset. It returns the number of
// parts written.
func (w *Writer) Run(ctx context.Context) (int, error) {
	remaining := w.cfg.Rows
	part := 0
	for remaining > 0 {
		size := w.cfg.PartSize
		if remaining < size {
			size = remaining
		}
		if err := w.writePart(ctx, part, size); err != nil {
			return part, err
		}
		remaining -= size
		part++
	}
	w.log.Info("demo dataset published",
		slog.String("dataset", w.cfg.DatasetName),
		slog.String("table", w.cfg.TableName),
		slog.Int("rows", w.cfg.Rows),
		slog.Int("parts", part),
	)
	return part, nil
}

func (w *Writer) writePart(ctx context.Context, part, rows int) error {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Row](buf)
	batch := make([]Row, 0, rows)
	for i := 0; i < rows; i++ {
		batch = append(batch, w.generator.NextRow())
	}
	if _, err := writer.Write(batch); err != nil {
		return fmt.Errorf("write parquet part %d: %w", part, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet part %d: %w", part, err)
	}

	key, err := storage.BuildDatasetFilePath(w.cfg.DatasetName, w.cfg.TableName, part)
	if err != nil {
		return fmt.Errorf("build part path: %w", err)
	}
	if _, err := w.store.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), storage.PutOptions{
		ContentType: "application/octet-stream",
	}); err != nil {
		return fmt.Errorf("upload part %d: %w", part, err)
	}
	return nil
}
