package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/prep"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/repository"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/repository/postgres"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/repository/sqlite"
	"github.com/andresuchdata/autopo-py/forecast-go/pkg/logger"
)

type loaderKey struct{}

// loader appends transactions to the configured database.
type loader interface {
	Load(ctx context.Context, records []domain.TransactionRecord) (int64, error)
	Close() error
}

type pgxLoader struct {
	db *sql.DB
}

func (l *pgxLoader) Load(ctx context.Context, records []domain.TransactionRecord) (int64, error) {
	return postgres.CopyTransactions(ctx, l.db, records)
}

func (l *pgxLoader) Close() error { return l.db.Close() }

type sqliteLoader struct {
	repo  *sqlite.TransactionRepository
	close func() error
}

func (l *sqliteLoader) Load(ctx context.Context, records []domain.TransactionRecord) (int64, error) {
	n, err := l.repo.InsertTransactions(ctx, records)
	return int64(n), err
}

func (l *sqliteLoader) Close() error { return l.close() }

func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db-driver",
			Usage:   "Target database: postgres or sqlite",
			Value:   "sqlite",
			EnvVars: []string{"DB_DRIVER"},
		},
		&cli.StringFlag{
			Name:    "db-url",
			Usage:   "Postgres connection string",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "sqlite-path",
			Usage:   "SQLite database file",
			Value:   "./data/forecast.db",
			EnvVars: []string{"DB_SQLITE_PATH"},
		},
		&cli.StringFlag{
			Name:    "malformed",
			Usage:   "What to do with malformed rows: skip or abort",
			Value:   string(domain.MalformedSkip),
			EnvVars: []string{"FORECAST_MALFORMED_POLICY"},
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Number of files parsed concurrently",
			Value: 4,
		},
		&cli.IntFlag{
			Name:  "batch-rows",
			Usage: "Rows buffered before each database write",
			Value: repository.DefaultBatchWriterConfig().BatchRows,
		},
	}
}

func initDB(c *cli.Context) error {
	var l loader
	switch strings.ToLower(c.String("db-driver")) {
	case "postgres", "postgresql":
		if c.String("db-url") == "" {
			return fmt.Errorf("--db-url is required for postgres")
		}
		db, err := sql.Open("pgx", c.String("db-url"))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.PingContext(c.Context); err != nil {
			db.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		if err := postgres.EnsureSchema(c.Context, db); err != nil {
			db.Close()
			return err
		}
		l = &pgxLoader{db: db}
	case "sqlite":
		db, err := sqlite.Open(c.String("sqlite-path"))
		if err != nil {
			return err
		}
		l = &sqliteLoader{repo: sqlite.NewTransactionRepository(db), close: db.Close}
	default:
		return fmt.Errorf("unknown db driver %q", c.String("db-driver"))
	}

	c.Context = context.WithValue(c.Context, loaderKey{}, l)
	return nil
}

func closeDB(c *cli.Context) error {
	if l, ok := c.Context.Value(loaderKey{}).(loader); ok && l != nil {
		return l.Close()
	}
	return nil
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logger.Log.Debug().Err(err).Msg("no .env file loaded")
	}

	app := &cli.App{
		Name:  "seed",
		Usage: "Load transaction exports into the forecast database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"LOG_LEVEL"}},
		},
		Before: func(c *cli.Context) error {
			logger.SetLevel(c.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "transactions",
				Usage: "Load every CSV export in a local directory",
				Flags: append(dbFlags(),
					&cli.StringFlag{
						Name:    "data-dir",
						Usage:   "Directory containing transaction CSV files",
						Value:   "./data/seeds/transactions",
						EnvVars: []string{"SEED_DATA_DIR"},
					},
				),
				Before: initDB,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					files, err := listCSV(c.String("data-dir"))
					if err != nil {
						return err
					}
					return loadFiles(c, files)
				},
			},
			{
				Name:   "storage",
				Usage:  "Download CSV exports from object storage, then load them",
				Flags:  append(dbFlags(), storageFlags()...),
				Before: initDB,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					d, err := newStorageDownloader(c)
					if err != nil {
						return err
					}
					files, err := d.download(c.Context, c.String("storage-prefix"), c.String("storage-key"))
					if err != nil {
						return err
					}
					return loadFiles(c, files)
				},
			},
			{
				Name:   "drive",
				Usage:  "Download CSV/XLSX exports from a Google Drive folder, then load them",
				Flags:  append(dbFlags(), driveFlags()...),
				Before: initDB,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					files, err := downloadDrive(c)
					if err != nil {
						return err
					}
					return loadFiles(c, files)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("seed failed")
	}
}

func listCSV(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CSV files found in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

// loadFiles parses files concurrently, then loads them in file order through a BatchWriter.
func loadFiles(c *cli.Context, files []string) error {
	l, ok := c.Context.Value(loaderKey{}).(loader)
	if !ok {
		return fmt.Errorf("database not initialised")
	}
	policy := domain.MalformedPolicy(c.String("malformed"))

	parsed := make([][]domain.TransactionRecord, len(files))
	var mu sync.Mutex
	malformed := 0

	g, _ := errgroup.WithContext(c.Context)
	g.SetLimit(max(1, c.Int("workers")))
	for i, path := range files {
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open file %s: %w", path, err)
			}
			defer f.Close()

			res, err := prep.ReadTransactionsCSV(f, policy)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			parsed[i] = res.Records

			mu.Lock()
			malformed += len(res.Malformed)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := repository.NewBatchWriter(repository.BatchWriterConfig{
		BatchRows:     c.Int("batch-rows"),
		FlushInterval: repository.DefaultBatchWriterConfig().FlushInterval,
	}, l.Load)
	for i, records := range parsed {
		if err := w.Add(c.Context, records); err != nil {
			return fmt.Errorf("load %s: %w", files[i], err)
		}
		logger.Log.Info().Str("file", files[i]).Int("rows", len(records)).Msg("queued transaction export")
	}
	if err := w.Finalize(c.Context); err != nil {
		return err
	}
	total, batches, _ := w.Stats()

	logger.Log.Info().
		Int("files", len(files)).
		Int64("rows", total).
		Int("batches", batches).
		Int("malformed", malformed).
		Msg("seeding completed")
	return nil
}
