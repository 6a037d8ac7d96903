package datasource

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/quantframe/papertrade/internal/logger"
	"github.com/quantframe/papertrade/internal/types"
	"github.com/quantframe/papertrade/pkg/errors"
	"go.uber.org/zap"
)

// CandleStore loads historical candles from CSV or Parquet files through an
// in-memory DuckDB view. The files must carry time, symbol, open, high, low,
// close and volume columns.
type CandleStore struct {
	db     *sql.DB
	sq     squirrel.StatementBuilderType
	logger *logger.Logger
}

// NewCandleStore opens an in-memory DuckDB instance.
func NewCandleStore(log *logger.Logger) (*CandleStore, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	return &CandleStore{
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger: log,
	}, nil
}

// Load creates the candles view over the given file glob. Parquet files are
// read with read_parquet, everything else with read_csv_auto.
func (s *CandleStore) Load(pattern string) error {
	s.logger.Debug("loading candle files", zap.String("pattern", pattern))

	if _, err := s.db.Exec(`DROP VIEW IF EXISTS candles;`); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to drop existing candles view", err)
	}

	reader := "read_csv_auto"
	if strings.HasSuffix(pattern, ".parquet") {
		reader = "read_parquet"
	}

	// CREATE VIEW is not expressible with squirrel, raw SQL here.
	query := fmt.Sprintf(`
		CREATE VIEW candles AS
		SELECT time, symbol, open, high, low, close, volume FROM %s('%s');
	`, reader, pattern)

	if _, err := s.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to create candles view from %s", pattern)
	}

	return nil
}

// Count returns the number of bars in the view, optionally bounded in time.
func (s *CandleStore) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	builder := s.sq.Select("COUNT(*)").From("candles")
	builder = applyTimeRange(builder, start, end)

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count candles", err)
	}

	return count, nil
}

// Symbols returns the distinct symbols present in the view.
func (s *CandleStore) Symbols() ([]string, error) {
	query, args, err := s.sq.Select("DISTINCT symbol").From("candles").OrderBy("symbol").ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build symbols query", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query symbols", err)
	}
	defer rows.Close()

	var symbols []string

	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan symbol", err)
		}

		symbols = append(symbols, symbol)
	}

	return symbols, rows.Err()
}

// Candles reads the bars for the given symbols ordered by time, grouped per
// symbol and ready to back a HistoricalSource. An empty symbol list reads
// every symbol in the view.
func (s *CandleStore) Candles(symbols []string, start optional.Option[time.Time], end optional.Option[time.Time]) (map[string][]types.Candle, error) {
	builder := s.sq.
		Select("time", "symbol", "open", "high", "low", "close", "volume").
		From("candles").
		OrderBy("time ASC", "symbol ASC")

	if len(symbols) > 0 {
		builder = builder.Where(squirrel.Eq{"symbol": symbols})
	}

	builder = applyTimeRange(builder, start, end)

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build candles query", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query candles", err)
	}
	defer rows.Close()

	result := make(map[string][]types.Candle)

	for rows.Next() {
		var candle types.Candle
		if err := rows.Scan(&candle.Time, &candle.Symbol, &candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan candle", err)
		}

		result[candle.Symbol] = append(result[candle.Symbol], candle)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed reading candle rows", err)
	}

	if len(result) == 0 {
		return nil, errors.New(errors.ErrCodeDataNotFound, "no candles matched the query")
	}

	return result, nil
}

// Close releases the DuckDB instance.
func (s *CandleStore) Close() error {
	return s.db.Close()
}

func applyTimeRange(builder squirrel.SelectBuilder, start optional.Option[time.Time], end optional.Option[time.Time]) squirrel.SelectBuilder {
	if start.IsSome() {
		builder = builder.Where(squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		builder = builder.Where(squirrel.LtOrEq{"time": end.Unwrap()})
	}

	return builder
}
