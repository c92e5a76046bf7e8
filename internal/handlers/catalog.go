package handlers

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
)

func isProductOnSale(price float64, saleEnabled bool, salePrice float64) bool {
	return saleEnabled && salePrice > 0 && salePrice < price
}

// effectiveProductPrice is the price a customer pays right now: the sale
// price while a valid sale is running, the list price otherwise.
func effectiveProductPrice(price float64, saleEnabled bool, salePrice float64) float64 {
	if isProductOnSale(price, saleEnabled, salePrice) {
		return salePrice
	}
	return price
}

// findActiveProduct resolves a product that is still purchasable. Catalog
// writes are owned by another service; this is a pure read.
func findActiveProduct(ctx context.Context, db *mongo.Database, productID primitive.ObjectID) (models.Product, error) {
	var product models.Product
	err := db.Collection("products").FindOne(ctx, bson.M{
		"_id":       productID,
		"isDeleted": bson.M{"$ne": true},
	}).Decode(&product)
	if err == mongo.ErrNoDocuments {
		return models.Product{}, productUnavailableError{ProductID: productID}
	}
	if err != nil {
		return models.Product{}, err
	}
	return product, nil
}
