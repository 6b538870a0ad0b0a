package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrCompanyNotFound is returned when the caller has no catalog document.
var ErrCompanyNotFound = errors.New("repository: company not found")

// mongoFinder is the subset of *mongo.Collection used by the catalog.
type mongoFinder interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
}

type companyDoc struct {
	Name  string   `bson:"nome"`
	Waste []bson.M `bson:"residuos"`
}

// WasteCatalog reads a company's waste inventory from the "empresas"
// collection, where the document _id is the company identity.
type WasteCatalog struct {
	coll mongoFinder
}

// NewWasteCatalog creates a catalog over the given collection.
func NewWasteCatalog(coll mongoFinder) (*WasteCatalog, error) {
	if coll == nil {
		return nil, errors.New("repository: mongo collection must not be nil")
	}
	return &WasteCatalog{coll: coll}, nil
}

// CompanyWaste returns the waste entries registered for the company.
func (c *WasteCatalog) CompanyWaste(ctx context.Context, userID string) ([]bson.M, error) {
	opts := options.FindOne().SetProjection(bson.M{"nome": 1, "residuos": 1, "_id": 0})
	var doc companyDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("repository: find company waste: %w", err)
	}
	if doc.Waste == nil {
		return []bson.M{}, nil
	}
	return doc.Waste, nil
}
