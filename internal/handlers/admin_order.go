package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

// GetAllOrders lists orders for staff, filterable by delivery status and a
// name/email/phone search, newest first.
func GetAllOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/orders"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid pagination")
			return
		}

		filter := bson.M{"deletedAt": nil}
		if status := c.Query("status"); status != "" && status != "all" {
			filter["deliveryStatus"] = status
		}
		if search := c.Query("search"); search != "" {
			filter["$or"] = bson.A{
				bson.M{"firstName": bson.M{"$regex": search, "$options": "i"}},
				bson.M{"email": bson.M{"$regex": search, "$options": "i"}},
				bson.M{"phone": bson.M{"$regex": search, "$options": "i"}},
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		orders := db.Collection("orders")

		total, err := orders.CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		opts := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetSkip((page - 1) * limit).
			SetLimit(limit)
		cursor, err := orders.Find(ctx, filter, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		contents := []models.Order{}
		if err := cursor.All(ctx, &contents); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"contents": contents,
			"total":    total,
			"page":     page,
			"limit":    limit,
		})
	}
}

type updateOrderStatusRequest struct {
	DeliveryStatus string `json:"deliveryStatus" binding:"required"`
}

// UpdateOrderStatus moves an order to a new delivery status with the coupled
// payment side effects. The write is conditional on the status pair read
// before computing the transition; losing a race against the payment webhook
// re-reads and retries instead of overwriting its result.
func UpdateOrderStatus(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/admin/orders/:orderId"
		defer handlePanic(c, route)

		var req updateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "deliveryStatus is required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		orders := db.Collection("orders")
		orderID := c.Param("orderId")

		const maxAttempts = 3
		for attempt := 0; attempt < maxAttempts; attempt++ {
			var order models.Order
			err := orders.FindOne(ctx, bson.M{"_id": orderID, "deletedAt": nil}).Decode(&order)
			if err == mongo.ErrNoDocuments {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "order not found"})
				return
			}
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}

			transition, err := applyDeliveryTarget(order, req.DeliveryStatus)
			if err != nil {
				var invalid validationError
				if errors.As(err, &invalid) {
					c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": invalid.Error()})
					return
				}
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}

			now := time.Now()
			set := bson.M{
				"deliveryStatus": transition.DeliveryStatus,
				"paymentStatus":  transition.PaymentStatus,
				"updatedAt":      now,
			}
			if transition.StampPaidAt {
				set["paymentInfo.paidAt"] = now
			}

			res, err := orders.UpdateOne(ctx,
				bson.M{
					"_id":            orderID,
					"deliveryStatus": order.DeliveryStatus,
					"paymentStatus":  order.PaymentStatus,
				},
				bson.M{"$set": set},
			)
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			if res.MatchedCount == 0 {
				// Someone else moved the order between our read and write.
				continue
			}

			var updated models.Order
			if err := orders.FindOne(ctx, bson.M{"_id": orderID}).Decode(&updated); err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "status updated", "data": updated})
			return
		}

		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "order is being updated concurrently, retry"})
	}
}
