package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

type Repository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, item domain.CartItem) error
	DeleteCart(ctx context.Context, userID string) error
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{collection: db.Collection("carts")}
}

func (m *mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *mongoRepository) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	now := time.Now()
	item.AddedAt = now

	filter := bson.M{"user_id": userID}

	var existing domain.Cart
	err := m.collection.FindOne(ctx, filter).Decode(&existing)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("failed to read cart: %w", err)
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		cart := domain.Cart{
			UserID:    userID,
			Items:     []domain.CartItem{item},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, insertErr := m.collection.InsertOne(ctx, cart); insertErr != nil {
			return fmt.Errorf("failed to create cart: %w", insertErr)
		}
		return nil
	}

	// Same product again bumps the quantity instead of adding a line.
	for i, existingItem := range existing.Items {
		if existingItem.ProductID == item.ProductID {
			update := bson.M{
				"$set": bson.M{
					fmt.Sprintf("items.%d.quantity", i): existingItem.Quantity + item.Quantity,
					"updated_at":                        now,
				},
			}
			if _, updateErr := m.collection.UpdateOne(ctx, filter, update); updateErr != nil {
				return fmt.Errorf("failed to update cart item: %w", updateErr)
			}
			return nil
		}
	}

	update := bson.M{
		"$push": bson.M{"items": item},
		"$set":  bson.M{"updated_at": now},
	}
	opts := options.Update().SetUpsert(true)
	if _, updateErr := m.collection.UpdateOne(ctx, filter, update, opts); updateErr != nil {
		return fmt.Errorf("failed to push cart item: %w", updateErr)
	}
	return nil
}

func (m *mongoRepository) DeleteCart(ctx context.Context, userID string) error {
	res, err := m.collection.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}
