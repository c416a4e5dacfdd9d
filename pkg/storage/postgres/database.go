package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"marketchart/config"
	"marketchart/internal/bootstrap"

	"github.com/lib/pq"
)

// OpenAdmin opens a plain database/sql connection on dbName with the
// credentials of cfg. An empty dbName selects cfg.DBName.
func OpenAdmin(ctx context.Context, cfg config.PostgresConfig, dbName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN(dbName))
	if err != nil {
		return nil, fmt.Errorf("connect failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	return db, nil
}

// CreateDatabase creates name unless it exists, in which case the returned
// error wraps bootstrap.ErrAlreadyExists.
func CreateDatabase(ctx context.Context, db *sql.DB, name string) error {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1);`
	if err := db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return fmt.Errorf("check db exists failed: %w", err)
	}

	if exists {
		return fmt.Errorf("database %s: %w", name, bootstrap.ErrAlreadyExists)
	}

	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return fmt.Errorf("create db failed: %w", err)
	}
	return nil
}

// CreateRole creates a login role unless it exists.
func CreateRole(ctx context.Context, db *sql.DB, name, password string) error {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM pg_roles WHERE rolname = $1);`
	if err := db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return fmt.Errorf("check role exists failed: %w", err)
	}

	if exists {
		return fmt.Errorf("role %s: %w", name, bootstrap.ErrAlreadyExists)
	}

	stmt := fmt.Sprintf("CREATE ROLE %s WITH LOGIN PASSWORD %s", pq.QuoteIdentifier(name), pq.QuoteLiteral(password))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create role failed: %w", err)
	}
	return nil
}

// tablePrivileges maps a role name to the privileges granted on every table
// of the public schema.
var tablePrivileges = map[string]string{
	"read":      "SELECT",
	"readWrite": "SELECT, INSERT, UPDATE, DELETE",
}

// GrantStatements returns the statements giving role on the current
// database to user. Default privileges cover tables created afterwards by
// the connected (administrative) role.
func GrantStatements(database, user, role string) ([]string, error) {
	privs, ok := tablePrivileges[role]
	if !ok {
		return nil, fmt.Errorf("unsupported role %q", role)
	}

	u := pq.QuoteIdentifier(user)
	stmts := []string{
		fmt.Sprintf("GRANT CONNECT, TEMPORARY ON DATABASE %s TO %s", pq.QuoteIdentifier(database), u),
		fmt.Sprintf("GRANT USAGE ON SCHEMA public TO %s", u),
		fmt.Sprintf("GRANT %s ON ALL TABLES IN SCHEMA public TO %s", privs, u),
		fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA public GRANT %s ON TABLES TO %s", privs, u),
	}
	if role == "readWrite" {
		stmts = append(stmts,
			fmt.Sprintf("GRANT USAGE, SELECT ON ALL SEQUENCES IN SCHEMA public TO %s", u),
			fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA public GRANT USAGE, SELECT ON SEQUENCES TO %s", u),
		)
	}
	return stmts, nil
}

// tableExists reports whether public.name exists.
func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var exists bool
	query := `SELECT to_regclass('public.' || quote_ident($1)) IS NOT NULL;`
	if err := db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check table %s exists: %w", name, err)
	}
	return exists, nil
}

// indexExists reports whether an index called name exists in public.
func indexExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM pg_indexes WHERE schemaname = 'public' AND indexname = $1);`
	if err := db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check index %s exists: %w", name, err)
	}
	return exists, nil
}
