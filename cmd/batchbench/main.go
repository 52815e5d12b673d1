package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/mevdschee/tqormysql/batch"
	"github.com/mevdschee/tqormysql/cache"
	"github.com/mevdschee/tqormysql/change"
	"github.com/mevdschee/tqormysql/config"
	"github.com/mevdschee/tqormysql/keygen"
	"github.com/mevdschee/tqormysql/metrics"
	"github.com/mevdschee/tqormysql/sqlexec"
	"github.com/mevdschee/tqormysql/sqlgen"
)

type report struct {
	Rows          int64   `json:"rows"`
	Batches       int64   `json:"batches"`
	Conflicts     int64   `json:"conflicts"`
	DroppedRows   int64   `json:"dropped_rows"`
	DurationMs    int64   `json:"duration_ms"`
	RowsPerSecond float64 `json:"rows_per_second"`
}

// counters aggregates worker results across goroutines
type counters struct {
	rows      atomic.Int64
	batches   atomic.Int64
	conflicts atomic.Int64
	dropped   atomic.Int64
}

// runWorker inserts rows through successive batches. Rows in a
// conflicted batch were never written; they count as dropped so the
// report does not silently under-deliver the requested row count
func runWorker(ctx context.Context, factory *batch.Factory, worker, rows int, guidKeys bool, guids *keygen.Generator, c *counters) error {
	remaining := rows
	for remaining > 0 {
		b := factory.NewBatch()
		for remaining > 0 {
			rec := benchRecord(worker, guidKeys)
			if guidKeys {
				guids.Apply(rec)
			}
			if !b.TryAdd(rec) {
				break
			}
			remaining--
		}
		err := b.FlushContext(ctx)
		switch {
		case err == nil:
			c.batches.Add(1)
			c.rows.Add(int64(b.Len()))
		case batch.IsConflictError(err):
			c.conflicts.Add(1)
			c.dropped.Add(int64(b.Len()))
		default:
			return err
		}
	}
	return nil
}

func main() {
	configPath := flag.String("config", "config.ini", "Path to configuration file")
	metricsAddr := flag.String("metrics", ":9090", "Metrics endpoint address")
	rows := flag.Int("rows", 10000, "Rows to insert per worker")
	workers := flag.Int("workers", 4, "Concurrent workers")
	guidKeys := flag.Bool("guid-keys", false, "Use client-generated GUID keys instead of auto_increment")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	metrics.Init()

	// Start metrics HTTP server with pprof
	go func() {
		http.Handle("/metrics", metrics.Handler())
		log.Printf("Metrics endpoint at http://localhost%s/metrics", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	exec, db, err := sqlexec.Open(cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to reach database: %v", err)
	}

	if err := createTables(ctx, db); err != nil {
		log.Fatalf("Failed to create bench tables: %v", err)
	}

	stmtCache, err := cache.New(cfg.Batch.StatementCacheSize)
	if err != nil {
		log.Fatalf("Failed to create statement cache: %v", err)
	}
	defer stmtCache.Close()

	factory, err := batch.NewFactory(batch.Limits{
		MaxBatchSize:        cfg.Batch.MaxBatchSize,
		NetworkPacketSize:   cfg.Batch.NetworkPacketSize,
		ContiguousInsertIDs: cfg.Batch.ContiguousInsertIDs,
	}, sqlgen.New(stmtCache), exec)
	if err != nil {
		log.Fatalf("Failed to create batch factory: %v", err)
	}

	log.Printf("[bench] %d workers x %d rows, max batch size %d", *workers, *rows, cfg.Batch.MaxBatchSize)

	var c counters
	guids := keygen.New(keygen.Sequential)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < *workers; w++ {
		worker := w
		g.Go(func() error {
			return runWorker(gctx, factory, worker, *rows, *guidKeys, guids, &c)
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("Bench run failed: %v", err)
	}

	elapsed := time.Since(start)
	r := report{
		Rows:        c.rows.Load(),
		Batches:     c.batches.Load(),
		Conflicts:   c.conflicts.Load(),
		DroppedRows: c.dropped.Load(),
		DurationMs:  elapsed.Milliseconds(),
	}
	if elapsed > 0 {
		r.RowsPerSecond = float64(r.Rows) / elapsed.Seconds()
	}

	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode report: %v", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS batchbench (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		worker INT NOT NULL,
		payload VARCHAR(64) NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS batchbench_guid (
		id CHAR(36) PRIMARY KEY,
		worker INT NOT NULL,
		payload VARCHAR(64) NOT NULL
	)`)
	return err
}

func benchRecord(worker int, guidKeys bool) *change.Record {
	if guidKeys {
		return &change.Record{
			Table: "batchbench_guid",
			Kind:  change.Insert,
			Columns: []change.Column{
				{Name: "id", Type: change.TypeString, Key: true, Write: true, ParameterName: "p0"},
				{Name: "worker", Type: change.TypeInt32, Write: true, ParameterName: "p1", Value: int32(worker)},
				{Name: "payload", Type: change.TypeString, Write: true, ParameterName: "p2", Value: "batchbench payload"},
			},
		}
	}
	return &change.Record{
		Table: "batchbench",
		Kind:  change.Insert,
		Columns: []change.Column{
			{Name: "id", Type: change.TypeInt64, Key: true, Read: true},
			{Name: "worker", Type: change.TypeInt32, Write: true, ParameterName: "p0", Value: int32(worker)},
			{Name: "payload", Type: change.TypeString, Write: true, ParameterName: "p1", Value: "batchbench payload"},
		},
	}
}
