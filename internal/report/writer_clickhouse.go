package report

import (
	"context"
	"fmt"
	"log"
	"time"

	"CuboTrack/internal/config"
	"CuboTrack/internal/factory"
	"CuboTrack/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

func init() {
	factory.RegisterWriter("clickhouse", NewClickHouseWriter)
}

const createTableStatement = `
CREATE TABLE IF NOT EXISTS session_summaries (
    RunID       String,
    GeneratedAt DateTime,
    Operator    String,
    SrcIP       String,
    Session     Int64,
    StartedAt   String,
    EndedAt     String,
    DurationMs  Int64,
    OkTotal     Int64,
    ErrTotal    Int64,
    Complete    UInt8,
    Mode        String,
    Records     UInt32,
    SensorState String,
    MeanFreq    Nullable(Float64)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(GeneratedAt)
ORDER BY (Operator, GeneratedAt);
`

// ClickHouseWriter appends one row per session to session_summaries. Every
// run is kept, keyed by RunID.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter connects to ClickHouse and ensures the table exists.
func NewClickHouseWriter(def config.WriterDef) (model.Writer, error) {
	conn, err := connect(def.ClickHouse)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("[report] Connected to ClickHouse, session_summaries ready.")

	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Name identifies the writer.
func (w *ClickHouseWriter) Name() string {
	return "clickhouse"
}

// Write inserts every session of the report in a single batch.
func (w *ClickHouseWriter) Write(ctx context.Context, report *model.Report) error {
	if report.SessionCount() == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO session_summaries")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	generated := report.GeneratedAt.UTC().Truncate(time.Second)
	rows := 0
	for _, op := range report.Operators {
		for _, s := range op.Sessions {
			var complete uint8
			if s.Complete {
				complete = 1
			}
			err = batch.Append(
				report.RunID,
				generated,
				s.Operator,
				s.SrcIP,
				int64(s.Session),
				s.StartedAt,
				s.EndedAt,
				s.DurationMs,
				s.OkTotal,
				s.ErrTotal,
				complete,
				s.Mode,
				uint32(s.Records),
				string(s.Sensor.State),
				s.Sensor.MeanFreq,
			)
			if err != nil {
				return fmt.Errorf("failed to append session to batch: %w", err)
			}
			rows++
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	log.Printf("[report] Wrote %d session rows to ClickHouse for run %s", rows, report.RunID)
	return nil
}

// Close releases the connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
