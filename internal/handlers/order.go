package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

// GetOrders lists the caller's orders, newest first.
func GetOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := db.Collection("orders").Find(ctx, bson.M{"userId": userID, "deletedAt": nil}, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		orders := []models.Order{}
		if err := cursor.All(ctx, &orders); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "data": orders})
	}
}

// GetOrder returns a single order owned by the caller.
func GetOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/order/:orderId"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var order models.Order
		err := db.Collection("orders").FindOne(ctx, bson.M{
			"_id":       c.Param("orderId"),
			"userId":    userID,
			"deletedAt": nil,
		}).Decode(&order)
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "order not found"})
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "data": order})
	}
}

// CancelOrder lets a customer cancel an order that fulfilment has not picked
// up yet. The pending check sits in the update filter, so two racing writers
// cannot both transition the order.
func CancelOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/order/:orderId"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		orderID := c.Param("orderId")
		now := time.Now()

		res, err := db.Collection("orders").UpdateOne(ctx,
			bson.M{
				"_id":            orderID,
				"userId":         userID,
				"deletedAt":      nil,
				"deliveryStatus": models.DeliveryPending,
			},
			bson.M{"$set": bson.M{
				"deliveryStatus": models.DeliveryCancelled,
				"paymentStatus":  models.PaymentCancelled,
				"updatedAt":      now,
			}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if res.MatchedCount == 0 {
			// Either the order is not ours or it already moved past pending.
			var order models.Order
			findErr := db.Collection("orders").FindOne(ctx, bson.M{
				"_id":       orderID,
				"userId":    userID,
				"deletedAt": nil,
			}).Decode(&order)
			if findErr == mongo.ErrNoDocuments {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "order not found"})
				return
			}
			if findErr != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			message := "order state changed, retry"
			if stateErr := canCustomerCancel(order); stateErr != nil {
				message = stateErr.Error()
			}
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": message})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "message": "order cancelled"})
	}
}

type updateOrderRequest struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	CompanyName *string `json:"companyName"`
	Country     *string `json:"country"`
	Street      *string `json:"street"`
	Apartment   *string `json:"apartment"`
	Cities      *string `json:"cities"`
	State       *string `json:"state"`
	Phone       *string `json:"phone"`
	ZipCode     *string `json:"zipCode"`
	Email       *string `json:"email"`
}

func (r updateOrderRequest) changes() bson.M {
	set := bson.M{}
	fields := map[string]*string{
		"firstName":   r.FirstName,
		"lastName":    r.LastName,
		"companyName": r.CompanyName,
		"country":     r.Country,
		"street":      r.Street,
		"apartment":   r.Apartment,
		"cities":      r.Cities,
		"state":       r.State,
		"phone":       r.Phone,
		"zipCode":     r.ZipCode,
		"email":       r.Email,
	}
	for key, value := range fields {
		if value != nil {
			set[key] = *value
		}
	}
	return set
}

// UpdateOrder edits shipping and contact fields while the order is still
// pending. The status guard lives in the update filter.
func UpdateOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/order/:orderId"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req updateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}

		set := req.changes()
		if len(set) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "no fields to update"})
			return
		}
		set["updatedAt"] = time.Now()

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		orderID := c.Param("orderId")
		res, err := db.Collection("orders").UpdateOne(ctx,
			bson.M{
				"_id":            orderID,
				"userId":         userID,
				"deletedAt":      nil,
				"deliveryStatus": models.DeliveryPending,
			},
			bson.M{"$set": set},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if res.MatchedCount == 0 {
			var order models.Order
			findErr := db.Collection("orders").FindOne(ctx, bson.M{
				"_id":       orderID,
				"userId":    userID,
				"deletedAt": nil,
			}).Decode(&order)
			if findErr == mongo.ErrNoDocuments {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "order not found"})
				return
			}
			if findErr != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			message := "order state changed, retry"
			if stateErr := canEditShipping(order); stateErr != nil {
				message = stateErr.Error()
			}
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": message})
			return
		}

		var order models.Order
		if err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "message": "order updated", "data": order})
	}
}
