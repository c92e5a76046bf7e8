package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
)

type createOrderRequest struct {
	FirstName      string `json:"firstName" binding:"required"`
	LastName       string `json:"lastName" binding:"required"`
	CompanyName    string `json:"companyName"`
	Country        string `json:"country" binding:"required"`
	Street         string `json:"street" binding:"required"`
	Apartment      string `json:"apartment"`
	Cities         string `json:"cities" binding:"required"`
	State          string `json:"state" binding:"required"`
	Phone          string `json:"phone" binding:"required"`
	ZipCode        string `json:"zipCode" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	PaymentMethods string `json:"paymentMethods" binding:"required,oneof=cod qr"`
}

// priceCartLines freezes a price snapshot for every cart line and sums the
// total with decimal arithmetic so repeated float additions cannot drift.
func priceCartLines(lines []models.CartLine, lookup func(primitive.ObjectID) (models.Product, error)) ([]models.OrderItem, float64, error) {
	if len(lines) == 0 {
		return nil, 0, emptyCartError{}
	}

	items := make([]models.OrderItem, 0, len(lines))
	total := decimal.Zero

	for _, line := range lines {
		product, err := lookup(line.ProductID)
		if err != nil {
			return nil, 0, err
		}

		unitPrice := effectiveProductPrice(product.Price, product.SaleEnabled, product.SalePrice)
		items = append(items, models.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Size:      line.Size,
			Price:     unitPrice,
		})
		total = total.Add(decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	totalAmount, _ := total.Float64()
	return items, totalAmount, nil
}

// consumeCartLines builds the soft-delete that retires exactly the lines
// the order snapshot priced. Every line gets the same deletion timestamp,
// and already-retired lines are left untouched.
func consumeCartLines(lines []models.CartLine, now time.Time) (bson.M, bson.M) {
	lineIDs := make([]primitive.ObjectID, 0, len(lines))
	for _, line := range lines {
		lineIDs = append(lineIDs, line.ID)
	}
	filter := bson.M{"_id": bson.M{"$in": lineIDs}, "isDeleted": bson.M{"$ne": true}}
	update := bson.M{"$set": bson.M{"isDeleted": true, "deletedAt": now, "updatedAt": now}}
	return filter, update
}

// CreateOrder converts the caller's active cart into an immutable order.
// Cart lines are soft-deleted only after the order insert succeeds, so a
// failed write never loses the cart. An optional Idempotency-Key header
// dedupes retried creations against the unique (userId, idempotencyKey)
// index.
func CreateOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/order"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			if field := firstValidationField(err); field != "" {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "missing required field", "field": field})
				return
			}
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		carts := db.Collection("carts")
		cursor, err := carts.Find(ctx, bson.M{"userId": userID, "isDeleted": bson.M{"$ne": true}})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		var lines []models.CartLine
		if err := cursor.All(ctx, &lines); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		items, totalAmount, err := priceCartLines(lines, func(productID primitive.ObjectID) (models.Product, error) {
			return findActiveProduct(ctx, db, productID)
		})
		if err != nil {
			var empty emptyCartError
			if errors.As(err, &empty) {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "cart is empty"})
				return
			}
			var unavailable productUnavailableError
			if errors.As(err, &unavailable) {
				c.JSON(http.StatusBadRequest, gin.H{
					"success":   false,
					"message":   "product is not available",
					"productId": unavailable.ProductID.Hex(),
				})
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		now := time.Now()
		order := models.Order{
			ID:             uuid.NewString(),
			UserID:         userID,
			FirstName:      req.FirstName,
			LastName:       req.LastName,
			CompanyName:    req.CompanyName,
			Country:        req.Country,
			Street:         req.Street,
			Apartment:      req.Apartment,
			Cities:         req.Cities,
			State:          req.State,
			Phone:          req.Phone,
			ZipCode:        req.ZipCode,
			Email:          req.Email,
			DeliveryStatus: models.DeliveryPending,
			PaymentMethods: req.PaymentMethods,
			PaymentStatus:  models.PaymentPending,
			Items:          items,
			TotalAmount:    totalAmount,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		idempotencyKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		if idempotencyKey != "" {
			order.IdempotencyKey = idempotencyKey
		}

		orders := db.Collection("orders")
		if _, err := orders.InsertOne(ctx, order); err != nil {
			if idempotencyKey != "" && mongo.IsDuplicateKeyError(err) {
				var existing models.Order
				findErr := orders.FindOne(ctx, bson.M{
					"userId":         userID,
					"idempotencyKey": idempotencyKey,
				}).Decode(&existing)
				if findErr == nil {
					log.Println("[ORDER] [INFO] idempotent replay of order", existing.ID)
					c.JSON(http.StatusOK, gin.H{"success": true, "message": "order already created", "data": existing})
					return
				}
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		// Consume the cart only after the order is durably written.
		consumeFilter, consumeUpdate := consumeCartLines(lines, now)
		if _, err := carts.UpdateMany(ctx, consumeFilter, consumeUpdate); err != nil {
			// The order exists; a stale cart is recoverable, a lost order is not.
			log.Println("[ORDER] [ERROR] cart invalidation failed for order", order.ID, ":", err)
		}

		log.Println("[ORDER] [INFO] order created for user:", userID.Hex())
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": "order created", "data": order})
	}
}
