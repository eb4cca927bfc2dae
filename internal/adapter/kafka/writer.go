package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/config"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

// Table names carried in the "table" header.
const (
	TableARIResults = "ari_results"
	TableCoverage   = "catchment_coverage"
	TableVerdicts   = "validation_verdicts"
	TableRejections = "rejections"
	TableSummary    = "summary"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes report rows to a Kafka topic, one message per row. Keys
// are the natural key of the row so a compacted topic keeps the latest value.
type Writer struct {
	writer    messageWriter
	batchSize int
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured results topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, batchSize: cfg.BatchSize, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// Write publishes every row of report in batches of the configured size.
func (w *Writer) Write(ctx context.Context, report *domain.Report) error {
	msgs, err := reportMessages(report)
	if err != nil {
		return err
	}

	size := w.batchSize
	if size <= 0 {
		size = len(msgs)
	}
	for start := 0; start < len(msgs); start += size {
		end := min(start+size, len(msgs))
		if err := w.writer.WriteMessages(ctx, msgs[start:end]...); err != nil {
			return fmt.Errorf("publish rows %d-%d: %w", start, end, err)
		}
	}
	w.logger.Info("report published", "run_id", report.RunID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func reportMessages(r *domain.Report) ([]kafkago.Message, error) {
	msgs := make([]kafkago.Message, 0, len(r.ARIResults)+len(r.Coverage)+len(r.Verdicts)+len(r.Rejections)+1)
	add := func(table, key string, v any) error {
		msg, err := serializeToMessage(table, key, r.RunID, v)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
		return nil
	}

	for _, a := range r.ARIResults {
		if err := add(TableARIResults, naturalKey(a.LocationID, string(a.Duration), a.Timestamp), a); err != nil {
			return nil, err
		}
	}
	for _, c := range r.Coverage {
		if err := add(TableCoverage, naturalKey(c.CatchmentID, string(c.Duration), c.Timestamp), c); err != nil {
			return nil, err
		}
	}
	for _, v := range r.Verdicts {
		if err := add(TableVerdicts, v.AlarmID, v); err != nil {
			return nil, err
		}
	}
	for _, rej := range r.Rejections {
		if err := add(TableRejections, rej.LocationID+"|"+rej.Rule, rej); err != nil {
			return nil, err
		}
	}
	if err := add(TableSummary, r.RunID, r.Summary); err != nil {
		return nil, err
	}
	return msgs, nil
}

func naturalKey(id, duration string, ts time.Time) string {
	return id + "|" + duration + "|" + ts.UTC().Format(time.RFC3339)
}

// serializeToMessage marshals one report row into a Kafka message.
func serializeToMessage(table, key, runID string, row any) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s row %s: %w", table, key, err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "table", Value: []byte(table)},
			{Key: "run_id", Value: []byte(runID)},
		},
	}, nil
}
