package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
)

type paymentWebhookRequest struct {
	TransferType    string   `json:"transferType"`
	Code            string   `json:"code"`
	Content         string   `json:"content"`
	TransferAmount  *float64 `json:"transferAmount"`
	TransactionID   int64    `json:"id"`
	Gateway         string   `json:"gateway"`
	TransactionDate string   `json:"transactionDate"`
	AccountNumber   string   `json:"accountNumber"`
	ReferenceCode   string   `json:"referenceCode"`
}

var orderRefPattern = regexp.MustCompile(`[a-fA-F0-9-]{24,36}`)

// extractOrderReference pulls an order id out of a payment notification. A
// machine-readable code wins; otherwise the first hex/hyphen token in the
// free-text narration is used. Some gateways strip hyphens from narration,
// so a 32-char unbroken hex run is re-hyphenated into 8-4-4-4-12 form.
func extractOrderReference(code, content string) string {
	if code != "" {
		return code
	}
	match := orderRefPattern.FindString(content)
	if match == "" {
		return ""
	}
	if len(match) == 32 && !strings.Contains(match, "-") {
		return fmt.Sprintf("%s-%s-%s-%s-%s",
			match[0:8], match[8:12], match[12:16], match[16:20], match[20:])
	}
	return match
}

// amountCovers reports whether the transferred amount pays the order total
// in full. Decimal comparison, so float representation noise cannot flip it.
func amountCovers(transferAmount, totalAmount float64) bool {
	return decimal.NewFromFloat(transferAmount).Cmp(decimal.NewFromFloat(totalAmount)) >= 0
}

// reconcileOutcome classifies what an inbound notification does to the
// order it references.
type reconcileOutcome int

const (
	reconcileApply reconcileOutcome = iota
	reconcileAlreadyCompleted
	reconcileInsufficient
)

// decideReconciliation inspects a fetched order. alreadyCompleted is the
// idempotent fast path for a retried delivery and never re-mutates
// financial fields; the conditional filter below still guards the window
// between this read and the write.
func decideReconciliation(order models.Order, transferAmount float64) reconcileOutcome {
	if !amountCovers(transferAmount, order.TotalAmount) {
		return reconcileInsufficient
	}
	if order.PaymentStatus == models.PaymentCompleted {
		return reconcileAlreadyCompleted
	}
	return reconcileApply
}

// paymentCompletionFilter matches the order only while it is live and not
// yet completed, so the completion write applies at most once no matter how
// many reconcile calls race on it.
func paymentCompletionFilter(orderID string) bson.M {
	return bson.M{
		"_id":           orderID,
		"deletedAt":     nil,
		"paymentStatus": bson.M{"$ne": models.PaymentCompleted},
	}
}

// paymentCompletionSet records the completed status and every piece of
// reconciliation metadata in a single update document.
func paymentCompletionSet(req paymentWebhookRequest, now time.Time) bson.M {
	return bson.M{"$set": bson.M{
		"paymentStatus": models.PaymentCompleted,
		"updatedAt":     now,
		"paymentInfo": models.PaymentInfo{
			TransactionID:   req.TransactionID,
			Gateway:         req.Gateway,
			TransactionDate: req.TransactionDate,
			AccountNumber:   req.AccountNumber,
			TransferAmount:  *req.TransferAmount,
			ReferenceCode:   req.ReferenceCode,
			Content:         req.Content,
			PaidAt:          &now,
		},
	}}
}

// PaymentWebhook reconciles inbound bank-transfer notifications against
// orders. Gateways retry aggressively on non-2xx responses, so every
// recognized-but-unmatchable case acknowledges with 200; only a bad
// credential or a malformed payload is an error.
func PaymentWebhook(db *mongo.Database, apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/payment/sepay-callback"
		defer handlePanic(c, route)

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		presented := strings.TrimPrefix(header, "Apikey ")
		if apiKey == "" || presented == header || presented != apiKey {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized - Invalid API key"})
			return
		}

		var req paymentWebhookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid payload")
			return
		}
		if req.TransferAmount == nil {
			respondWithError(c, http.StatusBadRequest, route, "transferAmount is required")
			return
		}

		if req.TransferType != "in" {
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "Transaction type not supported"})
			return
		}

		orderID := extractOrderReference(req.Code, req.Content)
		if orderID == "" {
			log.Println("[PAYMENT] [INFO] inbound transfer without an order reference, txn:", req.TransactionID)
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment received but cannot identify order"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		orders := db.Collection("orders")

		var order models.Order
		err := orders.FindOne(ctx, bson.M{"_id": orderID, "deletedAt": nil}).Decode(&order)
		if err == mongo.ErrNoDocuments {
			log.Println("[PAYMENT] [INFO] no order for reference:", orderID)
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "Order not found"})
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		switch decideReconciliation(order, *req.TransferAmount) {
		case reconcileInsufficient:
			log.Printf("[PAYMENT] [WARN] insufficient transfer for order %s: got %.2f, need %.2f",
				order.ID, *req.TransferAmount, order.TotalAmount)
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment amount insufficient"})
			return

		case reconcileAlreadyCompleted:
			log.Println("[PAYMENT] [INFO] duplicate completion ignored for order:", order.ID)

		case reconcileApply:
			res, err := orders.UpdateOne(ctx,
				paymentCompletionFilter(order.ID),
				paymentCompletionSet(req, time.Now()),
			)
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			if res.MatchedCount == 0 {
				// Lost a race between the read and the write. Re-read to
				// tell a concurrent completion from a concurrent deletion.
				err := orders.FindOne(ctx, bson.M{"_id": order.ID, "deletedAt": nil}).Decode(&order)
				if err == mongo.ErrNoDocuments {
					log.Println("[PAYMENT] [INFO] order vanished before completion:", order.ID)
					c.JSON(http.StatusOK, gin.H{"success": true, "message": "Order not found"})
					return
				}
				if err != nil {
					respondWithError(c, http.StatusInternalServerError, route, "db error")
					return
				}
				log.Println("[PAYMENT] [INFO] duplicate completion ignored for order:", order.ID)
			} else {
				log.Println("[PAYMENT] [INFO] payment completed for order:", order.ID)
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Payment processed successfully",
			"data": gin.H{
				"orderId":       order.ID,
				"paymentStatus": models.PaymentCompleted,
			},
		})
	}
}
