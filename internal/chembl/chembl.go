// Package chembl reads activities, drug mechanisms, target relations and
// compound and target annotations from a ChEMBL PostgreSQL database.
//
// Compounds are identified by their parent molregno and targets by tid,
// both as text. Salt forms are folded into their parent through
// molecule_hierarchy.
package chembl

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
	"github.com/fyrsmithlabs/dtiset/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Options configures a Source.
type Options struct {
	DSN      string
	MaxConns int32
	// QueryTimeout bounds each query. Zero disables the bound.
	QueryTimeout time.Duration
	Logger       *zap.Logger
}

// querier is the subset of *pgxpool.Pool the source uses.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Source implements the measurement, mechanism and descriptor sources of a
// build on top of a connection pool.
type Source struct {
	pool    *pgxpool.Pool
	q       querier
	timeout time.Duration
	logger  *zap.Logger
}

// Open connects to the database described by opts.DSN and verifies the
// connection.
func Open(ctx context.Context, opts Options) (*Source, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing chembl dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating chembl pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to chembl: %w", err)
	}

	s := newSource(pool, opts)
	s.pool = pool
	s.logger.Info("connected to chembl",
		logging.Endpoint("database", opts.DSN),
		zap.Int32("max_conns", cfg.MaxConns),
	)
	return s, nil
}

func newSource(q querier, opts Options) *Source {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{q: q, timeout: opts.QueryTimeout, logger: logger.Named("chembl")}
}

// Close releases the pool.
func (s *Source) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// query runs sql under the query timeout and collects every row with scan.
func query[T any](ctx context.Context, s *Source, name, sql string, scan pgx.RowToFunc[T], args ...any) ([]T, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}
	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	s.logger.Info("query complete",
		zap.String("query", name),
		zap.Int("rows", len(out)),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}

// Measurements returns the filtered activity rows.
func (s *Source) Measurements(ctx context.Context, literatureOnly bool) ([]dataset.RawMeasurement, error) {
	return query(ctx, s, "activities", buildMeasurementsQuery(literatureOnly), scanMeasurement)
}

// Mechanisms returns one record per distinct parent compound, target and
// disease efficacy in drug_mechanism.
func (s *Source) Mechanisms(ctx context.Context) ([]dataset.MechanismRecord, error) {
	return query(ctx, s, "drug_mechanism", mechanismsQuery, scanMechanism)
}

// TargetRelations returns the relations the resolver can expand over.
// Rows of other kinds are dropped here.
func (s *Source) TargetRelations(ctx context.Context) ([]dataset.TargetRelation, error) {
	all, err := query(ctx, s, "target_relations", relationsQuery, scanRelation)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if r.Kind != dataset.RelationUnknown {
			out = append(out, r)
		}
	}
	return out, nil
}
