package mongodb

import (
	"context"
	"errors"
	"fmt"

	"marketchart/internal/bootstrap"
	"marketchart/internal/schema"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Server error codes handled by the engine.
// https://github.com/mongodb/mongo/blob/master/src/mongo/base/error_codes.yml
const (
	codeNamespaceExists = 48
	codeUserExists      = 51003
)

// Engine performs the bootstrap against a MongoDB server. The client must be
// authenticated as a user allowed to create users and collections.
type Engine struct {
	client *mongo.Client
}

func NewEngine(client *mongo.Client) *Engine {
	return &Engine{client: client}
}

func (e *Engine) Name() string { return "mongodb" }

// CreateUser runs createUser on the admin database.
func (e *Engine) CreateUser(ctx context.Context, user bootstrap.User) error {
	roles := make(bson.A, 0, len(user.Grants))
	for _, g := range user.Grants {
		roles = append(roles, bson.M{"role": g.Role, "db": g.Database})
	}

	cmd := bson.D{
		{Key: "createUser", Value: user.Name},
		{Key: "pwd", Value: user.Password},
		{Key: "roles", Value: roles},
	}
	err := e.client.Database("admin").RunCommand(ctx, cmd).Err()
	if hasCode(err, codeUserExists) {
		return fmt.Errorf("user %s: %w", user.Name, bootstrap.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("createUser %s: %w", user.Name, err)
	}
	return nil
}

// CreateCollection creates coll with its $jsonSchema validator. An existing
// collection is left untouched, validator included.
func (e *Engine) CreateCollection(ctx context.Context, database string, coll schema.Collection, validate bool) error {
	db := e.client.Database(database)

	names, err := db.ListCollectionNames(ctx, bson.M{"name": coll.Name})
	if err != nil {
		return fmt.Errorf("list collections of %s: %w", database, err)
	}
	if len(names) > 0 {
		return fmt.Errorf("collection %s.%s: %w", database, coll.Name, bootstrap.ErrAlreadyExists)
	}

	opts := options.CreateCollection()
	if validate {
		opts.SetValidator(coll.JSONSchema())
	}

	err = db.CreateCollection(ctx, coll.Name, opts)
	if hasCode(err, codeNamespaceExists) {
		return fmt.Errorf("collection %s.%s: %w", database, coll.Name, bootstrap.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("createCollection %s.%s: %w", database, coll.Name, err)
	}
	return nil
}

// CreateUniqueIndex creates idx with ascending keys. An index with the same
// name counts as already existing.
func (e *Engine) CreateUniqueIndex(ctx context.Context, database, collection string, idx schema.Index) error {
	c := e.client.Database(database).Collection(collection)

	specs, err := c.Indexes().ListSpecifications(ctx)
	if err != nil {
		return fmt.Errorf("list indexes of %s.%s: %w", database, collection, err)
	}
	for _, s := range specs {
		if s.Name == idx.Name {
			return fmt.Errorf("index %s on %s.%s: %w", idx.Name, database, collection, bootstrap.ErrAlreadyExists)
		}
	}

	_, err = c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    IndexKeys(idx),
		Options: options.Index().SetUnique(true).SetName(idx.Name),
	})
	if err != nil {
		return fmt.Errorf("createIndexes %s on %s.%s: %w", idx.Name, database, collection, err)
	}
	return nil
}

// IndexKeys renders idx as an ordered key document.
func IndexKeys(idx schema.Index) bson.D {
	keys := make(bson.D, 0, len(idx.Keys))
	for _, k := range idx.Keys {
		keys = append(keys, bson.E{Key: k, Value: 1})
	}
	return keys
}

func hasCode(err error, code int) bool {
	if err == nil {
		return false
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.HasErrorCode(code)
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(code)
	}
	return false
}
