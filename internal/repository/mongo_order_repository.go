package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Humancodes/mystore/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type orderItemDocument struct {
	ProductRef string               `bson:"product_ref"`
	Name       string               `bson:"name"`
	UnitPrice  primitive.Decimal128 `bson:"unit_price"`
	Quantity   int                  `bson:"quantity"`
	AddedAt    time.Time            `bson:"added_at"`
}

type orderDocument struct {
	ID               string               `bson:"_id"`
	BuyerID          string               `bson:"buyer_id"`
	Items            []orderItemDocument  `bson:"items"`
	ShippingAddress  domain.Address       `bson:"shipping_address"`
	PaymentMethod    string               `bson:"payment_method"`
	PaymentReference string               `bson:"payment_reference,omitempty"`
	PaymentStatus    string               `bson:"payment_status"`
	OrderStatus      string               `bson:"order_status"`
	Subtotal         primitive.Decimal128 `bson:"subtotal"`
	ShippingCost     primitive.Decimal128 `bson:"shipping_cost"`
	Tax              primitive.Decimal128 `bson:"tax"`
	Total            primitive.Decimal128 `bson:"total"`
	Currency         string               `bson:"currency"`
	CreatedAt        time.Time            `bson:"created_at"`
}

type MongoOrderRepository struct {
	collection *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{collection: db.Collection("orders")}
}

func (m *MongoOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	doc, err := toOrderDocument(order)
	if err != nil {
		return err
	}

	if _, err := m.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *MongoOrderRepository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var doc orderDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return fromOrderDocument(&doc)
}

func (m *MongoOrderRepository) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := m.collection.Find(ctx, bson.M{"buyer_id": buyerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("query orders by buyer: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []*domain.Order
	for cursor.Next(ctx) {
		var doc orderDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		order, err := fromOrderDocument(&doc)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration error: %w", err)
	}
	return orders, nil
}

func (m *MongoOrderRepository) CreateIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}
	return nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert %s to decimal128: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse decimal128 %s: %w", v, err)
	}
	return d, nil
}

func toOrderDocument(o *domain.Order) (*orderDocument, error) {
	doc := &orderDocument{
		ID:               o.ID,
		BuyerID:          o.BuyerID,
		ShippingAddress:  o.ShippingAddress,
		PaymentMethod:    o.PaymentMethod,
		PaymentReference: o.PaymentReference,
		PaymentStatus:    string(o.PaymentStatus),
		OrderStatus:      string(o.OrderStatus),
		Currency:         o.Currency,
		CreatedAt:        o.CreatedAt,
	}

	amounts := []struct {
		src decimal.Decimal
		dst *primitive.Decimal128
	}{
		{o.Subtotal, &doc.Subtotal},
		{o.ShippingCost, &doc.ShippingCost},
		{o.Tax, &doc.Tax},
		{o.Total, &doc.Total},
	}
	for _, a := range amounts {
		v, err := toDecimal128(a.src)
		if err != nil {
			return nil, err
		}
		*a.dst = v
	}

	doc.Items = make([]orderItemDocument, 0, len(o.Items))
	for _, item := range o.Items {
		price, err := toDecimal128(item.UnitPrice)
		if err != nil {
			return nil, err
		}
		doc.Items = append(doc.Items, orderItemDocument{
			ProductRef: string(item.ProductRef),
			Name:       item.Name,
			UnitPrice:  price,
			Quantity:   item.Quantity,
			AddedAt:    item.AddedAt,
		})
	}
	return doc, nil
}

func fromOrderDocument(doc *orderDocument) (*domain.Order, error) {
	o := &domain.Order{
		ID:               doc.ID,
		BuyerID:          doc.BuyerID,
		ShippingAddress:  doc.ShippingAddress,
		PaymentMethod:    doc.PaymentMethod,
		PaymentReference: doc.PaymentReference,
		PaymentStatus:    domain.PaymentStatus(doc.PaymentStatus),
		OrderStatus:      domain.OrderStatus(doc.OrderStatus),
		Currency:         doc.Currency,
		CreatedAt:        doc.CreatedAt,
	}

	amounts := []struct {
		src primitive.Decimal128
		dst *decimal.Decimal
	}{
		{doc.Subtotal, &o.Subtotal},
		{doc.ShippingCost, &o.ShippingCost},
		{doc.Tax, &o.Tax},
		{doc.Total, &o.Total},
	}
	for _, a := range amounts {
		v, err := fromDecimal128(a.src)
		if err != nil {
			return nil, err
		}
		*a.dst = v
	}

	o.Items = make([]domain.LineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		price, err := fromDecimal128(item.UnitPrice)
		if err != nil {
			return nil, err
		}
		o.Items = append(o.Items, domain.LineItem{
			ProductRef: domain.ProductRef(item.ProductRef),
			Name:       item.Name,
			UnitPrice:  price,
			Quantity:   item.Quantity,
			AddedAt:    item.AddedAt,
		})
	}
	return o, nil
}
