package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"marketchart/config"
	"marketchart/internal/bootstrap"
	"marketchart/internal/schema"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Engine performs the bootstrap against a PostgreSQL server. cfg carries the
// administrative login; databases are reached by name on the same server.
//
// Collections map to tables created by the embedded migrations. Their column
// constraints are always enforced, whatever the validate flag.
type Engine struct {
	cfg    config.PostgresConfig
	logger *zap.Logger

	conns       map[string]*sql.DB
	migrated    map[string]map[string]bool // database -> tables present before migrating
	provisioner provisioner                // nil: adminProvisioner
}

func NewEngine(cfg config.PostgresConfig, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		logger:   logger,
		conns:    map[string]*sql.DB{},
		migrated: map[string]map[string]bool{},
	}
}

func (e *Engine) Name() string { return "postgres" }

func (e *Engine) conn(ctx context.Context, database string) (*sql.DB, error) {
	if db, ok := e.conns[database]; ok {
		return db, nil
	}
	db, err := OpenAdmin(ctx, e.cfg, database)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", database, err)
	}
	e.conns[database] = db
	return db, nil
}

// provisioner runs the DDL of CreateUser. Create methods return an error
// wrapping bootstrap.ErrAlreadyExists when there is nothing to create.
type provisioner interface {
	CreateRole(ctx context.Context, name, password string) error
	CreateDatabase(ctx context.Context, name string) error
	Grant(ctx context.Context, database, user, role string) error
}

// CreateUser creates the login role, then every granted database that does
// not exist yet, then the grants. Databases and grants are applied even
// when the role already exists, so a re-run completes an interrupted one.
// The error wraps bootstrap.ErrAlreadyExists only when nothing was created.
func (e *Engine) CreateUser(ctx context.Context, user bootstrap.User) error {
	p := e.provisioner
	if p == nil {
		p = adminProvisioner{e}
	}

	created := false
	switch err := p.CreateRole(ctx, user.Name, user.Password); {
	case err == nil:
		created = true
	case !errors.Is(err, bootstrap.ErrAlreadyExists):
		return err
	}

	for _, g := range user.Grants {
		switch err := p.CreateDatabase(ctx, g.Database); {
		case err == nil:
			created = true
		case !errors.Is(err, bootstrap.ErrAlreadyExists):
			return err
		}

		if err := p.Grant(ctx, g.Database, user.Name, g.Role); err != nil {
			return err
		}
		e.logger.Debug("role granted", zap.String("database", g.Database), zap.String("role", g.Role))
	}

	if !created {
		return fmt.Errorf("role %s and its databases: %w", user.Name, bootstrap.ErrAlreadyExists)
	}
	return nil
}

// adminProvisioner runs the DDL over the engine's connections.
type adminProvisioner struct {
	e *Engine
}

func (a adminProvisioner) CreateRole(ctx context.Context, name, password string) error {
	admin, err := a.e.conn(ctx, a.e.cfg.AdminDB)
	if err != nil {
		return err
	}
	return CreateRole(ctx, admin, name, password)
}

func (a adminProvisioner) CreateDatabase(ctx context.Context, name string) error {
	admin, err := a.e.conn(ctx, a.e.cfg.AdminDB)
	if err != nil {
		return err
	}
	return CreateDatabase(ctx, admin, name)
}

func (a adminProvisioner) Grant(ctx context.Context, database, user, role string) error {
	stmts, err := GrantStatements(database, user, role)
	if err != nil {
		return err
	}
	db, err := a.e.conn(ctx, database)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("grant %s on %s: %w", role, database, err)
		}
	}
	return nil
}

// CreateCollection migrates database on first use and reports whether the
// table for coll was created by that migration.
func (e *Engine) CreateCollection(ctx context.Context, database string, coll schema.Collection, _ bool) error {
	db, err := e.conn(ctx, database)
	if err != nil {
		return err
	}

	before, ok := e.migrated[database]
	if !ok {
		before = map[string]bool{}
		for _, c := range schema.StockMarket() {
			exists, err := tableExists(ctx, db, c.Name)
			if err != nil {
				return err
			}
			before[c.Name] = exists
		}
		if err := Migrate(e.cfg.URL(database), e.logger); err != nil {
			return fmt.Errorf("migrate %s: %w", database, err)
		}
		e.migrated[database] = before
	}

	if before[coll.Name] {
		return fmt.Errorf("table %s.%s: %w", database, coll.Name, bootstrap.ErrAlreadyExists)
	}

	exists, err := tableExists(ctx, db, coll.Name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("table %s.%s: no migration creates it", database, coll.Name)
	}
	return nil
}

// CreateUniqueIndex creates idx on collection unless it exists. Index names
// are schema-wide in PostgreSQL, so they are prefixed with the table name.
func (e *Engine) CreateUniqueIndex(ctx context.Context, database, collection string, idx schema.Index) error {
	db, err := e.conn(ctx, database)
	if err != nil {
		return err
	}

	exists, err := indexExists(ctx, db, IndexName(collection, idx))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("index %s on %s.%s: %w", idx.Name, database, collection, bootstrap.ErrAlreadyExists)
	}

	if _, err := db.ExecContext(ctx, UniqueIndexStatement(collection, idx)); err != nil {
		return fmt.Errorf("create index %s on %s.%s: %w", idx.Name, database, collection, err)
	}
	return nil
}

func IndexName(table string, idx schema.Index) string {
	return table + "_" + idx.Name
}

// UniqueIndexStatement renders idx as CREATE UNIQUE INDEX on table.
func UniqueIndexStatement(table string, idx schema.Index) string {
	cols := make([]string, len(idx.Keys))
	for i, k := range idx.Keys {
		cols[i] = pq.QuoteIdentifier(k)
	}
	return fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)",
		pq.QuoteIdentifier(IndexName(table, idx)), pq.QuoteIdentifier(table), strings.Join(cols, ", "))
}

// Close releases every connection opened by the engine.
func (e *Engine) Close() error {
	var errs []error
	for name, db := range e.conns {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	e.conns = map[string]*sql.DB{}
	return errors.Join(errs...)
}
