package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

// revenueFilter selects the orders that count as revenue: a delivered order
// counts even before its payment status has been reconciled.
func revenueFilter() bson.M {
	return bson.M{
		"deletedAt": nil,
		"$or": bson.A{
			bson.M{"paymentStatus": bson.M{"$in": bson.A{models.PaymentPaid, models.PaymentCompleted}}},
			bson.M{"deliveryStatus": models.DeliveryDelivered},
		},
	}
}

type revenueBucket struct {
	Key    string  `json:"key"`
	Total  float64 `json:"total"`
	Orders int     `json:"orders"`
}

// parseUTCOffset turns a "+07:00" style offset into a fixed reporting zone.
func parseUTCOffset(offset string) (*time.Location, error) {
	if len(offset) != 6 || (offset[0] != '+' && offset[0] != '-') || offset[3] != ':' {
		return nil, fmt.Errorf("invalid utc offset %q", offset)
	}
	hours, err := strconv.Atoi(offset[1:3])
	if err != nil {
		return nil, fmt.Errorf("invalid utc offset %q", offset)
	}
	minutes, err := strconv.Atoi(offset[4:6])
	if err != nil || hours > 14 || minutes > 59 {
		return nil, fmt.Errorf("invalid utc offset %q", offset)
	}
	seconds := hours*3600 + minutes*60
	if offset[0] == '-' {
		seconds = -seconds
	}
	return time.FixedZone("UTC"+offset, seconds), nil
}

// bucketRevenue groups eligible orders into daily and monthly revenue
// buckets keyed by the calendar date in the reporting zone. Both series are
// sorted ascending by key; totals are decimal sums.
func bucketRevenue(orders []models.Order, loc *time.Location) (daily, monthly []revenueBucket) {
	type accumulator struct {
		total  decimal.Decimal
		orders int
	}
	dailyAcc := map[string]*accumulator{}
	monthlyAcc := map[string]*accumulator{}

	add := func(acc map[string]*accumulator, key string, amount decimal.Decimal) {
		bucket, ok := acc[key]
		if !ok {
			bucket = &accumulator{}
			acc[key] = bucket
		}
		bucket.total = bucket.total.Add(amount)
		bucket.orders++
	}

	for _, order := range orders {
		local := order.CreatedAt.In(loc)
		amount := decimal.NewFromFloat(order.TotalAmount)
		add(dailyAcc, local.Format("2006-01-02"), amount)
		add(monthlyAcc, local.Format("2006-01"), amount)
	}

	collect := func(acc map[string]*accumulator) []revenueBucket {
		buckets := make([]revenueBucket, 0, len(acc))
		for key, a := range acc {
			total, _ := a.total.Float64()
			buckets = append(buckets, revenueBucket{Key: key, Total: total, Orders: a.orders})
		}
		sort.Slice(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
		return buckets
	}

	return collect(dailyAcc), collect(monthlyAcc)
}

// sumRevenue adds order totals without accumulating float error.
func sumRevenue(orders []models.Order) float64 {
	total := decimal.Zero
	for _, order := range orders {
		total = total.Add(decimal.NewFromFloat(order.TotalAmount))
	}
	result, _ := total.Float64()
	return result
}

type topProductRow struct {
	ProductID primitive.ObjectID `bson:"_id" json:"productId"`
	TotalSold int                `bson:"totalSold" json:"totalSold"`
	Revenue   float64            `bson:"revenue" json:"revenue"`
	Name      string             `bson:"-" json:"name"`
	Price     float64            `bson:"-" json:"price"`
	ImagePath string             `bson:"-" json:"imagePath,omitempty"`
}

// GetDashboardStats assembles the reporting dashboard: total, daily and
// monthly revenue, delivery-status breakdown, top sellers, a recent-orders
// sample and entity counts. Read-only; a product that vanished from the
// catalog drops out of the top-seller list instead of failing the report.
func GetDashboardStats(db *mongo.Database, defaultTZOffset string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/stats"
		defer handlePanic(c, route)

		offset := defaultTZOffset
		if override := c.Query("tz"); override != "" {
			offset = override
		}
		loc, err := parseUTCOffset(offset)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid tz offset")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
		defer cancel()

		orders := db.Collection("orders")

		// Revenue series over eligible orders.
		projection := options.Find().SetProjection(bson.M{"totalAmount": 1, "createdAt": 1})
		cursor, err := orders.Find(ctx, revenueFilter(), projection)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		var eligible []models.Order
		if err := cursor.All(ctx, &eligible); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		totalRevenue := sumRevenue(eligible)
		dailyRevenue, monthlyRevenue := bucketRevenue(eligible, loc)

		// Delivery-status breakdown over all live orders.
		statusCursor, err := orders.Aggregate(ctx, mongo.Pipeline{
			{{Key: "$match", Value: bson.M{"deletedAt": nil}}},
			{{Key: "$group", Value: bson.M{"_id": "$deliveryStatus", "count": bson.M{"$sum": 1}}}},
			{{Key: "$sort", Value: bson.M{"_id": 1}}},
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		var orderStatusStats []bson.M
		if err := statusCursor.All(ctx, &orderStatusStats); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		// Top sellers by quantity across eligible orders.
		topCursor, err := orders.Aggregate(ctx, mongo.Pipeline{
			{{Key: "$match", Value: revenueFilter()}},
			{{Key: "$unwind", Value: "$items"}},
			{{Key: "$group", Value: bson.M{
				"_id":       "$items.productId",
				"totalSold": bson.M{"$sum": "$items.quantity"},
				"revenue":   bson.M{"$sum": bson.M{"$multiply": bson.A{"$items.price", "$items.quantity"}}},
			}}},
			{{Key: "$sort", Value: bson.M{"totalSold": -1}}},
			{{Key: "$limit", Value: 5}},
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		var topRows []topProductRow
		if err := topCursor.All(ctx, &topRows); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		// Current catalog fields resolved at report time, deliberately not
		// the frozen order prices.
		topProducts := make([]topProductRow, 0, len(topRows))
		for _, row := range topRows {
			product, err := findActiveProduct(ctx, db, row.ProductID)
			if err != nil {
				continue
			}
			row.Name = product.Name
			row.Price = product.Price
			row.ImagePath = product.ImagePath
			topProducts = append(topProducts, row)
		}

		recentOpts := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetLimit(5).
			SetProjection(bson.M{
				"firstName":      1,
				"lastName":       1,
				"totalAmount":    1,
				"deliveryStatus": 1,
				"createdAt":      1,
			})
		recentCursor, err := orders.Find(ctx, bson.M{"deletedAt": nil}, recentOpts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		recentOrders := []models.Order{}
		if err := recentCursor.All(ctx, &recentOrders); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		totalUsers, err := db.Collection("users").CountDocuments(ctx, bson.M{"role": "user"})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		totalProducts, err := db.Collection("products").CountDocuments(ctx, bson.M{"isDeleted": bson.M{"$ne": true}})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		totalOrders, err := orders.CountDocuments(ctx, bson.M{"deletedAt": nil})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"totalRevenue":     totalRevenue,
			"dailyRevenue":     dailyRevenue,
			"monthlyRevenue":   monthlyRevenue,
			"orderStatusStats": orderStatusStats,
			"topProducts":      topProducts,
			"recentOrders":     recentOrders,
			"counts": gin.H{
				"users":    totalUsers,
				"products": totalProducts,
				"orders":   totalOrders,
			},
		})
	}
}
