package bootstrap

import (
	"context"
	"errors"

	"marketchart/internal/schema"
)

// ErrAlreadyExists is wrapped by engines when the object being created is
// already there. The runner records such steps as skipped.
var ErrAlreadyExists = errors.New("already exists")

// Grant gives Role on Database.
type Grant struct {
	Database string
	Role     string
}

// User is the credential record created for application services.
type User struct {
	Name     string
	Password string
	Grants   []Grant
}

// Engine is the administrative API of a database server.
type Engine interface {
	Name() string
	CreateUser(ctx context.Context, user User) error
	// CreateCollection creates coll in database, with its validator when
	// validate is set.
	CreateCollection(ctx context.Context, database string, coll schema.Collection, validate bool) error
	CreateUniqueIndex(ctx context.Context, database, collection string, idx schema.Index) error
}

// Plan is the ordered list of objects to create.
type Plan struct {
	User        User
	Databases   []string
	Collections []schema.Collection
	Validators  bool
	Indexes     bool
}

// NewPlan grants role on every database and, when collections is set,
// creates the stock market collections with validators in each of them.
func NewPlan(username, password string, databases []string, role string, collections, indexes bool) Plan {
	grants := make([]Grant, 0, len(databases))
	for _, db := range databases {
		grants = append(grants, Grant{Database: db, Role: role})
	}

	plan := Plan{
		User:      User{Name: username, Password: password, Grants: grants},
		Databases: databases,
	}
	if collections {
		plan.Collections = schema.StockMarket()
		plan.Validators = true
		plan.Indexes = indexes
	}
	return plan
}

// Validate rejects plans that cannot be executed.
func (p Plan) Validate() error {
	if p.User.Name == "" {
		return errors.New("plan: empty username")
	}
	if p.User.Password == "" {
		return errors.New("plan: empty password")
	}
	if len(p.User.Grants) == 0 {
		return errors.New("plan: user has no grants")
	}
	if len(p.Collections) > 0 && len(p.Databases) == 0 {
		return errors.New("plan: collections without databases")
	}
	return nil
}
