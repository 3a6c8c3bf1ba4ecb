package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/solatis/typekeeper/internal/core/config"
	"github.com/solatis/typekeeper/internal/engine"
	"github.com/solatis/typekeeper/internal/typedef"
	"github.com/spf13/cobra"
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Format JSON records from stdin into typed rows",
	Long: `Reads one JSON object per line from stdin, binds each record to an event
type of the target and writes {"event_type": ..., "row": ...} lines to stdout.`,
	RunE: runFormat,
}

func init() {
	rootCmd.AddCommand(formatCmd)
	formatCmd.Flags().String("targets", "", "targets file declaring the target")
	formatCmd.Flags().String("target", "", "target to format records for")
	formatCmd.Flags().Bool("strict", false, "reject records with fields outside the known set")
	formatCmd.Flags().Int("batch", 256, "records ingested per batch")
	_ = formatCmd.MarkFlagRequired("targets")
	_ = formatCmd.MarkFlagRequired("target")
}

// rowWriter is a Sink streaming rows as JSON lines.
type rowWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newRowWriter(w io.Writer) *rowWriter {
	return &rowWriter{enc: json.NewEncoder(w)}
}

func (w *rowWriter) Push(_ context.Context, eventTypeName string, rows []map[string]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, row := range rows {
		if err := w.enc.Encode(map[string]any{"event_type": eventTypeName, "row": row}); err != nil {
			return err
		}
	}
	return nil
}

func runFormat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	targetsPath, _ := cmd.Flags().GetString("targets")
	target, _ := cmd.Flags().GetString("target")
	strict, _ := cmd.Flags().GetBool("strict")
	batchSize, _ := cmd.Flags().GetInt("batch")
	if batchSize <= 0 {
		return fmt.Errorf("--batch must be positive, got %d", batchSize)
	}

	tf, err := config.LoadTargets(targetsPath)
	if err != nil {
		return err
	}
	if _, ok := tf.Targets[target]; !ok {
		return fmt.Errorf("target %q not declared in %s", target, targetsPath)
	}

	manager, err := typedef.NewManager(engine.NewCatalog(), newRowWriter(cmd.OutOrStdout()),
		typedef.WithStrict(strict),
		typedef.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	if err := openTargets(ctx, manager, tf); err != nil {
		return err
	}

	total, failed, err := formatStream(ctx, manager, target, cmd.InOrStdin(), batchSize)
	slog.Info("format finished",
		slog.String("target", target),
		slog.Int("records", total),
		slog.Int("format_errors", failed))
	return err
}

// formatStream decodes records from r and ingests them in batches.
// Numbers stay json.Number so integers keep their kind.
func formatStream(ctx context.Context, manager *typedef.Manager, target string, r io.Reader, batchSize int) (total, failed int, err error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	dec.UseNumber()

	flush := func(batch []map[string]any) error {
		if len(batch) == 0 {
			return nil
		}
		result, err := manager.Ingest(ctx, target, batch)
		total += result.Accepted
		failed += result.FormatErrors
		return err
	}

	batch := make([]map[string]any, 0, batchSize)
	for {
		var record map[string]any
		if err := dec.Decode(&record); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return total, failed, fmt.Errorf("record %d: %w", total+len(batch)+1, err)
		}
		batch = append(batch, record)
		if len(batch) == batchSize {
			if err := flush(batch); err != nil {
				return total, failed, err
			}
			batch = batch[:0]
		}
	}
	return total, failed, flush(batch)
}
