package topo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/percona/percona-collection-migrator/errors"
)

// IndexSpecification contains all index options as listed by listIndexes.
//
// Options the struct does not name are kept in Rest so that a replayed
// specification is identical to the source one.
type IndexSpecification struct {
	Name               string   `bson:"name"`                         // Index name
	Namespace          string   `bson:"ns,omitempty"`                 // Namespace (pre-4.4 servers)
	KeysDocument       bson.Raw `bson:"key"`                          // Keys document
	Version            int32    `bson:"v,omitempty"`                  // Version
	Sparse             *bool    `bson:"sparse,omitempty"`             // Sparse index
	Hidden             *bool    `bson:"hidden,omitempty"`             // Hidden index
	Unique             *bool    `bson:"unique,omitempty"`             // Unique index
	ExpireAfterSeconds *int64   `bson:"expireAfterSeconds,omitempty"` // Expire after seconds

	Weights          any      `bson:"weights,omitempty"`           // Weights
	DefaultLanguage  *string  `bson:"default_language,omitempty"`  // Default language
	LanguageOverride *string  `bson:"language_override,omitempty"` // Language override
	TextVersion      *int32   `bson:"textIndexVersion,omitempty"`  // Text index version
	Collation        bson.Raw `bson:"collation,omitempty"`         // Collation

	WildcardProjection      any `bson:"wildcardProjection,omitempty"`      // Wildcard projection
	PartialFilterExpression any `bson:"partialFilterExpression,omitempty"` // Partial filter expression

	Bits      *int32   `bson:"bits,omitempty"`                 // Bits
	Min       *float64 `bson:"min,omitempty"`                  // Min
	Max       *float64 `bson:"max,omitempty"`                  // Max
	GeoIdxVer *int32   `bson:"2dsphereIndexVersion,omitempty"` // Geo index version

	Rest map[string]any `bson:",inline"`
}

// IsDefault reports whether the index is the implicit _id index.
func (s *IndexSpecification) IsDefault() bool {
	return s.Name == "_id_"
}

// IndexLister lists the indexes of one collection. [*mongo.Collection] implements it via
// [mongo.IndexView]; see [CollectionIndexes].
type IndexLister interface {
	List(ctx context.Context, opts ...options.Lister[options.ListIndexesOptions]) (*mongo.Cursor, error)
}

// CollectionIndexes returns the index view of coll as an [IndexLister].
func CollectionIndexes(coll *mongo.Collection) IndexLister {
	return coll.Indexes()
}

// ListIndexes returns every index of the collection, including _id_.
// A missing collection has no indexes.
func ListIndexes(ctx context.Context, indexes IndexLister) ([]*IndexSpecification, error) {
	cur, err := indexes.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list indexes")
	}

	var specs []*IndexSpecification
	err = cur.All(ctx, &specs)

	return specs, errors.Wrap(err, "decode indexes")
}

// CollectionNamesLister lists collection names. [*mongo.Database] implements it.
type CollectionNamesLister interface {
	ListCollectionNames(
		ctx context.Context,
		filter any,
		opts ...options.Lister[options.ListCollectionsOptions],
	) ([]string, error)
}

// ListCollectionNames returns a list of non-system collection names in the database.
// Views are skipped: they hold no documents of their own.
func ListCollectionNames(ctx context.Context, db CollectionNamesLister) ([]string, error) {
	names, err := db.ListCollectionNames(ctx, bson.D{
		{"name", bson.D{{"$not", bson.D{{"$regex", "^system\\."}}}}},
		{"type", "collection"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "list collection names")
	}

	return names, nil
}
