package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureOrderIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("orders").Indexes()

	userIDIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetName("userId_index"),
	}

	// One order per (user, idempotency key). Only orders that carry a key
	// participate, so legacy clients without the header are unaffected.
	idempotencyIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "idempotencyKey", Value: 1},
		},
		Options: options.Index().
			SetName("idempotencyKey_unique").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{
				"idempotencyKey": bson.M{
					"$exists": true,
				},
			}),
	}

	log.Println("EnsureOrderIndexes: creating userId_index and idempotencyKey_unique indexes")
	_, err := indexes.CreateMany(ctx, []mongo.IndexModel{userIDIndex, idempotencyIndex})
	if err != nil {
		log.Println("EnsureOrderIndexes: index error:", err)
		return err
	}
	log.Println("EnsureOrderIndexes: order indexes created")
	return nil
}

func EnsureCartIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("carts").Indexes()

	userIDIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetName("userId_index"),
	}

	// A cart line is keyed by (owner, product, size). Soft-deleted lines drop
	// out of the partial index so a consumed cart can be rebuilt.
	lineKeyIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "productId", Value: 1},
			{Key: "size", Value: 1},
		},
		Options: options.Index().
			SetName("cartLine_unique").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{
				"isDeleted": false,
			}),
	}

	log.Println("EnsureCartIndexes: creating userId_index and cartLine_unique indexes")
	_, err := indexes.CreateMany(ctx, []mongo.IndexModel{userIDIndex, lineKeyIndex})
	if err != nil {
		log.Println("EnsureCartIndexes: index error:", err)
		return err
	}
	log.Println("EnsureCartIndexes: cart indexes created")
	return nil
}
