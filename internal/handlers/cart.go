package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

type cartItemResponse struct {
	ProductID primitive.ObjectID `json:"productId"`
	Name      string             `json:"name"`
	Price     float64            `json:"price"`
	Quantity  int                `json:"quantity"`
	Size      string             `json:"size"`
	Total     float64            `json:"total"`
	ImagePath string             `json:"imagePath,omitempty"`
}

func buildCartItemResponse(line models.CartLine, product models.Product) cartItemResponse {
	unitPrice := effectiveProductPrice(product.Price, product.SaleEnabled, product.SalePrice)
	total, _ := decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(line.Quantity))).Float64()
	return cartItemResponse{
		ProductID: line.ProductID,
		Name:      product.Name,
		Price:     unitPrice,
		Quantity:  line.Quantity,
		Size:      line.Size,
		Total:     total,
		ImagePath: product.ImagePath,
	}
}

func activeCartFilter(userID primitive.ObjectID) bson.M {
	return bson.M{"userId": userID, "isDeleted": bson.M{"$ne": true}}
}

// GetCart lists the caller's active cart lines with current catalog prices.
// Lines whose product disappeared from the catalog are skipped.
func GetCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/cart"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cursor, err := db.Collection("carts").Find(ctx, activeCartFilter(userID))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		var lines []models.CartLine
		if err := cursor.All(ctx, &lines); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		items := []cartItemResponse{}
		for _, line := range lines {
			product, err := findActiveProduct(ctx, db, line.ProductID)
			if err != nil {
				continue
			}
			items = append(items, buildCartItemResponse(line, product))
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "data": items})
	}
}

type addToCartRequest struct {
	ProductID  string `json:"productId" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,gt=0"`
	Size       string `json:"size"`
	IsMultiple bool   `json:"isMultiple"`
}

// AddToCart merges a quantity into the caller's (product, size) line, or
// creates the line. isMultiple replaces the quantity instead of adding to
// it. A single upsert keeps the merge atomic under concurrent adds.
func AddToCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/cart"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req addToCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}

		productID, err := primitive.ObjectIDFromHex(req.ProductID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid productId")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if _, err := findActiveProduct(ctx, db, productID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success":   false,
				"message":   "product is not available",
				"productId": productID.Hex(),
			})
			return
		}

		now := time.Now()
		filter := bson.M{
			"userId":    userID,
			"productId": productID,
			"size":      req.Size,
			"isDeleted": false,
		}
		// The equality fields of the filter seed the inserted document, so
		// isDeleted:false is already part of a fresh line.
		update := bson.M{
			"$set":         bson.M{"updatedAt": now},
			"$setOnInsert": bson.M{"createdAt": now},
		}
		if req.IsMultiple {
			update["$set"].(bson.M)["quantity"] = req.Quantity
		} else {
			update["$inc"] = bson.M{"quantity": req.Quantity}
		}

		_, err = db.Collection("carts").UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusCreated, gin.H{"success": true, "message": "added to cart"})
	}
}

type cartLineRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
}

// DecreaseCart reduces a line's quantity, soft-deleting the line when the
// decrease consumes it. The quantity guard sits in the update filter.
func DecreaseCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/cart/decrease"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req cartLineRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}
		if req.Quantity <= 0 {
			req.Quantity = 1
		}

		productID, err := primitive.ObjectIDFromHex(req.ProductID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid productId")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		carts := db.Collection("carts")
		now := time.Now()
		lineFilter := bson.M{
			"userId":    userID,
			"productId": productID,
			"size":      req.Size,
			"isDeleted": bson.M{"$ne": true},
		}

		decFilter := bson.M{}
		for k, v := range lineFilter {
			decFilter[k] = v
		}
		decFilter["quantity"] = bson.M{"$gt": req.Quantity}

		res, err := carts.UpdateOne(ctx, decFilter, bson.M{
			"$inc": bson.M{"quantity": -req.Quantity},
			"$set": bson.M{"updatedAt": now},
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount > 0 {
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "cart decreased"})
			return
		}

		// The decrease consumes the whole line.
		res, err = carts.UpdateOne(ctx, lineFilter, bson.M{
			"$set": bson.M{"isDeleted": true, "deletedAt": now, "updatedAt": now},
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "cart line not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "message": "cart line removed"})
	}
}

// RemoveCartLine soft-deletes one (product, size) line.
func RemoveCartLine(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/cart/item"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req cartLineRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}

		productID, err := primitive.ObjectIDFromHex(req.ProductID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid productId")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		now := time.Now()
		res, err := db.Collection("carts").UpdateOne(ctx,
			bson.M{
				"userId":    userID,
				"productId": productID,
				"size":      req.Size,
				"isDeleted": bson.M{"$ne": true},
			},
			bson.M{"$set": bson.M{"isDeleted": true, "deletedAt": now, "updatedAt": now}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "cart line not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "message": "cart line deleted"})
	}
}

// ClearCart soft-deletes every active line of the caller's cart.
func ClearCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/cart"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		now := time.Now()
		res, err := db.Collection("carts").UpdateMany(ctx, activeCartFilter(userID),
			bson.M{"$set": bson.M{"isDeleted": true, "deletedAt": now, "updatedAt": now}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"acknowledged": true, "deletedCount": res.ModifiedCount})
	}
}
