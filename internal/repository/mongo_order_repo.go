package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

type orderItemDocument struct {
	Product primitive.ObjectID `bson:"product"`
	Name    string             `bson:"name"`
	Qty     int                `bson:"qty"`
	Price   float64            `bson:"price"`
	Image   string             `bson:"image"`
}

type orderDocument struct {
	ID              primitive.ObjectID     `bson:"_id"`
	User            primitive.ObjectID     `bson:"user"`
	OrderItems      []orderItemDocument    `bson:"orderItems"`
	ShippingAddress domain.ShippingAddress `bson:"shippingAddress"`
	PaymentMethod   string                 `bson:"paymentMethod"`
	PaymentResult   *domain.PaymentResult  `bson:"paymentResult,omitempty"`
	ItemsPrice      float64                `bson:"itemsPrice"`
	TaxPrice        float64                `bson:"taxPrice"`
	ShippingPrice   float64                `bson:"shippingPrice"`
	TotalPrice      float64                `bson:"totalPrice"`
	IsPaid          bool                   `bson:"isPaid"`
	PaidAt          *time.Time             `bson:"paidAt,omitempty"`
	IsDelivered     bool                   `bson:"isDelivered"`
	DeliveredAt     *time.Time             `bson:"deliveredAt,omitempty"`
	CreatedAt       time.Time              `bson:"createdAt"`
	UpdatedAt       time.Time              `bson:"updatedAt"`
}

func (d orderDocument) toDomain() domain.Order {
	items := make([]domain.OrderItem, 0, len(d.OrderItems))
	for _, it := range d.OrderItems {
		items = append(items, domain.OrderItem{
			ProductID: it.Product.Hex(),
			Name:      it.Name,
			Qty:       it.Qty,
			Price:     it.Price,
			Image:     it.Image,
		})
	}
	return domain.Order{
		ID:              d.ID.Hex(),
		UserID:          d.User.Hex(),
		OrderItems:      items,
		ShippingAddress: d.ShippingAddress,
		PaymentMethod:   d.PaymentMethod,
		PaymentResult:   d.PaymentResult,
		PriceBreakdown: domain.PriceBreakdown{
			ItemsPrice:    d.ItemsPrice,
			TaxPrice:      d.TaxPrice,
			ShippingPrice: d.ShippingPrice,
			TotalPrice:    d.TotalPrice,
		},
		IsPaid:      d.IsPaid,
		PaidAt:      d.PaidAt,
		IsDelivered: d.IsDelivered,
		DeliveredAt: d.DeliveredAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// MongoOrderRepository implementa OrderRepository sobre las colecciones orders y products.
//
// Sin transacciones multi-documento: cada línea se reserva con un $inc
// condicional y, si algo falla después, las reservas previas se devuelven.
type MongoOrderRepository struct {
	logger   *zap.Logger
	orders   *mongo.Collection
	products *mongo.Collection
}

func NewMongoOrderRepository(logger *zap.Logger, database *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{
		logger:   logger,
		orders:   database.Collection("orders"),
		products: database.Collection("products"),
	}
}

type stockReservation struct {
	product primitive.ObjectID
	qty     int
}

func (r *MongoOrderRepository) Place(ctx context.Context, order domain.Order) (domain.Order, error) {
	userID, err := primitive.ObjectIDFromHex(order.UserID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("user %s: %w", order.UserID, ErrNotFound)
	}

	doc := orderDocument{
		ID:              primitive.NewObjectID(),
		User:            userID,
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		PaymentResult:   order.PaymentResult,
		ItemsPrice:      order.ItemsPrice,
		TaxPrice:        order.TaxPrice,
		ShippingPrice:   order.ShippingPrice,
		TotalPrice:      order.TotalPrice,
		IsPaid:          order.IsPaid,
		PaidAt:          order.PaidAt,
		IsDelivered:     order.IsDelivered,
		DeliveredAt:     order.DeliveredAt,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}

	reserved := make([]stockReservation, 0, len(order.OrderItems))
	for _, item := range order.OrderItems {
		pid, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			r.release(reserved)
			return domain.Order{}, fmt.Errorf("product %s: %w", item.ProductID, ErrNotFound)
		}
		res, err := r.products.UpdateOne(ctx,
			bson.M{"_id": pid, "countInStock": bson.M{"$gte": item.Qty}},
			bson.M{"$inc": bson.M{"countInStock": -item.Qty}},
		)
		if err != nil {
			r.release(reserved)
			return domain.Order{}, err
		}
		if res.MatchedCount == 0 {
			r.release(reserved)
			return domain.Order{}, fmt.Errorf("product %s: %w", item.ProductID, ErrInsufficientStock)
		}
		reserved = append(reserved, stockReservation{product: pid, qty: item.Qty})
		doc.OrderItems = append(doc.OrderItems, orderItemDocument{
			Product: pid,
			Name:    item.Name,
			Qty:     item.Qty,
			Price:   item.Price,
			Image:   item.Image,
		})
	}

	if _, err := r.orders.InsertOne(ctx, doc); err != nil {
		r.release(reserved)
		return domain.Order{}, translateMongoError(err)
	}
	return doc.toDomain(), nil
}

// release devuelve stock reservado; usa un contexto propio para sobrevivir a la cancelación del request.
func (r *MongoOrderRepository) release(reserved []stockReservation) {
	if len(reserved) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, res := range reserved {
		_, err := r.products.UpdateOne(ctx,
			bson.M{"_id": res.product},
			bson.M{"$inc": bson.M{"countInStock": res.qty}},
		)
		if err != nil && r.logger != nil {
			r.logger.Error("release stock failed",
				zap.Error(err),
				zap.String("product_id", res.product.Hex()),
				zap.Int("qty", res.qty),
			)
		}
	}
}

func (r *MongoOrderRepository) GetByID(ctx context.Context, id string) (domain.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Order{}, ErrNotFound
	}
	var doc orderDocument
	if err := r.orders.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return domain.Order{}, translateMongoError(err)
	}
	return doc.toDomain(), nil
}

func (r *MongoOrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return []domain.Order{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, bson.M{"user": oid}, opts)
}

func (r *MongoOrderRepository) List(ctx context.Context, limit, offset int) ([]domain.Order, int64, error) {
	total, err := r.orders.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	orders, err := r.find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *MongoOrderRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time, result *domain.PaymentResult) (domain.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Order{}, ErrNotFound
	}
	set := bson.M{"isPaid": true, "updatedAt": paidAt}
	if result != nil {
		set["paymentResult"] = bson.M{"$literal": result}
	}
	update := bson.A{
		bson.M{"$set": set},
		bson.M{"$set": bson.M{"paidAt": bson.M{"$ifNull": bson.A{"$paidAt", paidAt}}}},
	}
	return r.updateOne(ctx, oid, update)
}

func (r *MongoOrderRepository) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) (domain.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Order{}, ErrNotFound
	}
	update := bson.A{
		bson.M{"$set": bson.M{"isDelivered": true, "updatedAt": deliveredAt}},
		bson.M{"$set": bson.M{"deliveredAt": bson.M{"$ifNull": bson.A{"$deliveredAt", deliveredAt}}}},
	}
	return r.updateOne(ctx, oid, update)
}

func (r *MongoOrderRepository) updateOne(ctx context.Context, id primitive.ObjectID, pipeline bson.A) (domain.Order, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc orderDocument
	if err := r.orders.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline, opts).Decode(&doc); err != nil {
		return domain.Order{}, translateMongoError(err)
	}
	return doc.toDomain(), nil
}

func (r *MongoOrderRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Order, error) {
	cur, err := r.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []orderDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, d := range docs {
		orders = append(orders, d.toDomain())
	}
	return orders, nil
}
