package repository

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/domain"
)

type productDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	Name         string             `bson:"name"`
	Description  string             `bson:"description"`
	Brand        string             `bson:"brand"`
	Category     string             `bson:"category"`
	Image        string             `bson:"image"`
	Price        float64            `bson:"price"`
	CountInStock int                `bson:"countInStock"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

func (d productDocument) toDomain() domain.Product {
	return domain.Product{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Description:  d.Description,
		Brand:        d.Brand,
		Category:     d.Category,
		Image:        d.Image,
		Price:        d.Price,
		CountInStock: d.CountInStock,
		CreatedAt:    d.CreatedAt,
	}
}

// MongoProductRepository implementa ProductRepository sobre la colección products.
type MongoProductRepository struct {
	col *mongo.Collection
}

func NewMongoProductRepository(database *mongo.Database) *MongoProductRepository {
	return &MongoProductRepository{col: database.Collection("products")}
}

func (r *MongoProductRepository) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	doc := productDocument{
		ID:           primitive.NewObjectID(),
		Name:         p.Name,
		Description:  p.Description,
		Brand:        p.Brand,
		Category:     p.Category,
		Image:        p.Image,
		Price:        p.Price,
		CountInStock: p.CountInStock,
		CreatedAt:    p.CreatedAt,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return domain.Product{}, translateMongoError(err)
	}
	return doc.toDomain(), nil
}

func (r *MongoProductRepository) GetByID(ctx context.Context, id string) (domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Product{}, ErrNotFound
	}
	var doc productDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return domain.Product{}, translateMongoError(err)
	}
	return doc.toDomain(), nil
}

func (r *MongoProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int64, error) {
	query := bson.M{}
	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		query["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(kw), Options: "i"}
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(filter.Offset)).
		SetLimit(int64(filter.Limit))
	cur, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var docs []productDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	products := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, d.toDomain())
	}
	return products, total, nil
}

func (r *MongoProductRepository) Categories(ctx context.Context) ([]string, error) {
	values, err := r.col.Distinct(ctx, "category", bson.M{"category": bson.M{"$ne": ""}})
	if err != nil {
		return nil, err
	}
	categories := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			categories = append(categories, s)
		}
	}
	sort.Strings(categories)
	return categories, nil
}
