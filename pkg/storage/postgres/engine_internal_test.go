package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"marketchart/config"
	"marketchart/internal/bootstrap"

	"go.uber.org/zap"
)

// fakeProvisioner keeps roles and databases in memory and records grants.
type fakeProvisioner struct {
	roles     map[string]bool
	databases map[string]bool
	grants    []string
	failGrant bool
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{roles: map[string]bool{}, databases: map[string]bool{}}
}

func (f *fakeProvisioner) CreateRole(_ context.Context, name, _ string) error {
	if f.roles[name] {
		return fmt.Errorf("role %s: %w", name, bootstrap.ErrAlreadyExists)
	}
	f.roles[name] = true
	return nil
}

func (f *fakeProvisioner) CreateDatabase(_ context.Context, name string) error {
	if f.databases[name] {
		return fmt.Errorf("database %s: %w", name, bootstrap.ErrAlreadyExists)
	}
	f.databases[name] = true
	return nil
}

func (f *fakeProvisioner) Grant(_ context.Context, database, user, role string) error {
	if f.failGrant {
		return errors.New("connection refused")
	}
	f.grants = append(f.grants, user+"@"+database+":"+role)
	return nil
}

func testUser(databases ...string) bootstrap.User {
	u := bootstrap.User{Name: "opa", Password: "s3cret"}
	for _, db := range databases {
		u.Grants = append(u.Grants, bootstrap.Grant{Database: db, Role: "readWrite"})
	}
	return u
}

// go test -v --run ^TestCreateUserCompletesOnRerun$
func TestCreateUserCompletesOnRerun(t *testing.T) {
	ctx := context.Background()
	fake := newFakeProvisioner()
	e := NewEngine(config.PostgresConfig{}, zap.NewNop())
	e.provisioner = fake

	// first run creates the role and the database, then fails to grant
	fake.failGrant = true
	if err := e.CreateUser(ctx, testUser("stock_market")); err == nil {
		t.Fatal("expected the grant failure to be returned")
	}
	fake.failGrant = false

	if err := e.CreateUser(ctx, testUser("stock_market")); !errors.Is(err, bootstrap.ErrAlreadyExists) {
		t.Fatalf("expected the re-run to create nothing, got %v", err)
	}
	if len(fake.grants) != 1 {
		t.Fatalf("expected one grant, got %v", fake.grants)
	}

	// a database added later is created and granted
	if err := e.CreateUser(ctx, testUser("stock_market", "stock_market-dev")); err != nil {
		t.Fatalf("expected the new database to be created, got %v", err)
	}
	if !fake.databases["stock_market-dev"] {
		t.Error("expected stock_market-dev to be created")
	}
	if len(fake.grants) != 3 {
		t.Errorf("expected grants on both databases, got %v", fake.grants)
	}

	// nothing left to create
	err := e.CreateUser(ctx, testUser("stock_market", "stock_market-dev"))
	if !errors.Is(err, bootstrap.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if len(fake.grants) != 5 {
		t.Errorf("expected grants to be reapplied, got %v", fake.grants)
	}
}
