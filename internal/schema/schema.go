// Package schema declares the document shape of each collection once and
// derives both the MongoDB $jsonSchema validator and a local validator from it.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BSONType is a $jsonSchema bsonType alias.
type BSONType string

const (
	TypeString   BSONType = "string"
	TypeDate     BSONType = "date"
	TypeDouble   BSONType = "double"
	TypeInt      BSONType = "int"
	TypeLong     BSONType = "long"
	TypeObjectID BSONType = "objectId"
)

var (
	ErrMissingField    = errors.New("missing required field")
	ErrUnexpectedField = errors.New("unexpected field")
	ErrWrongType       = errors.New("wrong type")
)

// Field declares one property of a document.
type Field struct {
	Name     string
	Types    []BSONType
	Required bool
}

// Index is a unique index over Keys, in order, ascending.
type Index struct {
	Name string
	Keys []string
}

// Collection is the declared shape of a collection.
type Collection struct {
	Name          string
	Fields        []Field
	UniqueIndexes []Index
	// Strict rejects fields that are not declared.
	Strict bool
}

// ValidationError reports the first rule a field broke.
type ValidationError struct {
	Collection string
	Field      string
	Reason     error
	Detail     string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s.%s: %v", e.Collection, e.Field, e.Reason)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// Required returns the names of the required fields, in declaration order.
func (c Collection) Required() []string {
	var out []string
	for _, f := range c.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// Field looks a field up by name.
func (c Collection) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// JSONSchema renders the collection validator passed to createCollection.
func (c Collection) JSONSchema() bson.M {
	properties := bson.M{
		"_id": bson.M{"bsonType": string(TypeObjectID)},
	}
	for _, f := range c.Fields {
		prop := bson.M{}
		if len(f.Types) == 1 {
			prop["bsonType"] = string(f.Types[0])
		} else {
			types := make(bson.A, 0, len(f.Types))
			for _, t := range f.Types {
				types = append(types, string(t))
			}
			prop["bsonType"] = types
		}
		if f.Required {
			prop["description"] = fmt.Sprintf("must be a %s and is required", typeList(f.Types))
		} else {
			prop["description"] = fmt.Sprintf("must be a %s", typeList(f.Types))
		}
		properties[f.Name] = prop
	}

	jsonSchema := bson.M{
		"bsonType":   "object",
		"properties": properties,
	}
	if required := c.Required(); len(required) > 0 {
		jsonSchema["required"] = required
	}
	if c.Strict {
		jsonSchema["additionalProperties"] = false
	}

	return bson.M{"$jsonSchema": jsonSchema}
}

// Validate checks doc against the declaration. All violations are returned,
// joined, ordered by field name.
func (c Collection) Validate(doc bson.M) error {
	var errs []*ValidationError

	for _, f := range c.Fields {
		v, ok := doc[f.Name]
		if !ok {
			if f.Required {
				errs = append(errs, &ValidationError{Collection: c.Name, Field: f.Name, Reason: ErrMissingField})
			}
			continue
		}
		// a present null is a type mismatch, as for $jsonSchema
		if v == nil {
			errs = append(errs, &ValidationError{
				Collection: c.Name,
				Field:      f.Name,
				Reason:     ErrWrongType,
				Detail:     fmt.Sprintf("expected %s, got null", typeList(f.Types)),
			})
			continue
		}
		got := typeOf(v)
		if !accepts(f.Types, got) {
			errs = append(errs, &ValidationError{
				Collection: c.Name,
				Field:      f.Name,
				Reason:     ErrWrongType,
				Detail:     fmt.Sprintf("expected %s, got %s", typeList(f.Types), got),
			})
		}
	}

	if c.Strict {
		for name := range doc {
			if name == "_id" {
				continue
			}
			if _, ok := c.Field(name); !ok {
				errs = append(errs, &ValidationError{Collection: c.Name, Field: name, Reason: ErrUnexpectedField})
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}

	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return errors.Join(joined...)
}

// ValidateValue marshals v through the bson codec and validates the result,
// so struct tags and omitempty apply exactly as they will on insert.
func (c Collection) ValidateValue(v any) error {
	doc, err := ToDocument(v)
	if err != nil {
		return err
	}
	return c.Validate(doc)
}

// ToDocument converts a struct into the bson.M it will be stored as.
func ToDocument(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}

func typeOf(v any) BSONType {
	switch v.(type) {
	case string:
		return TypeString
	case time.Time, primitive.DateTime:
		return TypeDate
	case float64, float32:
		return TypeDouble
	case int32, int8, int16:
		return TypeInt
	case int64, int:
		return TypeLong
	case primitive.ObjectID:
		return TypeObjectID
	default:
		return BSONType(fmt.Sprintf("%T", v))
	}
}

func accepts(types []BSONType, got BSONType) bool {
	for _, t := range types {
		if t == got {
			return true
		}
	}
	return false
}

func typeList(types []BSONType) string {
	if len(types) == 1 {
		return string(types[0])
	}
	s := ""
	for i, t := range types {
		if i > 0 {
			s += " or "
		}
		s += string(t)
	}
	return s
}
