package handlers

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"storefront/internal/models"
)

const testOrderRef = "a1b2c3d4-e5f6-47a8-b9c0-d1e2f3a4b5c6"

func TestExtractOrderReferencePrefersCode(t *testing.T) {
	got := extractOrderReference(testOrderRef, "some other 0123456789abcdef01234567 token")
	if got != testOrderRef {
		t.Fatalf("expected code to win, got %q", got)
	}
}

func TestExtractOrderReferenceRehyphenatesStrippedUUID(t *testing.T) {
	content := "thanh toan don hang a1b2c3d4e5f647a8b9c0d1e2f3a4b5c6"
	got := extractOrderReference("", content)
	if got != testOrderRef {
		t.Fatalf("expected canonical uuid, got %q", got)
	}
}

func TestExtractOrderReferencePassesHyphenatedUUIDThrough(t *testing.T) {
	content := "chuyen khoan a1b2c3d4-e5f6-47a8-b9c0-d1e2f3a4b5c6 cam on"
	got := extractOrderReference("", content)
	if got != testOrderRef {
		t.Fatalf("expected uuid passed through, got %q", got)
	}
}

func TestExtractOrderReferenceNoCandidate(t *testing.T) {
	tests := []string{
		"",
		"thank you for shopping",
		"ref 12345",
	}
	for _, content := range tests {
		if got := extractOrderReference("", content); got != "" {
			t.Fatalf("expected no reference in %q, got %q", content, got)
		}
	}
}

func TestAmountCovers(t *testing.T) {
	tests := []struct {
		transfer float64
		total    float64
		want     bool
	}{
		{100, 100, true},
		{150, 100, true},
		{99.99, 100, false},
		{0.3, 0.3, true},
	}
	for _, tt := range tests {
		if got := amountCovers(tt.transfer, tt.total); got != tt.want {
			t.Fatalf("amountCovers(%v, %v) = %v, want %v", tt.transfer, tt.total, got, tt.want)
		}
	}
}

func TestDecideReconciliation(t *testing.T) {
	order := models.Order{ID: testOrderRef, TotalAmount: 100, PaymentStatus: models.PaymentPending}

	if got := decideReconciliation(order, 100); got != reconcileApply {
		t.Fatalf("expected a covering transfer on a pending order to apply, got %v", got)
	}
	if got := decideReconciliation(order, 50); got != reconcileInsufficient {
		t.Fatalf("expected a short transfer to be classified insufficient, got %v", got)
	}

	order.PaymentStatus = models.PaymentCompleted
	if got := decideReconciliation(order, 100); got != reconcileAlreadyCompleted {
		t.Fatalf("expected a retried delivery on a completed order to be a no-op, got %v", got)
	}
}

func TestPaymentCompletionFilterAppliesAtMostOnce(t *testing.T) {
	filter := paymentCompletionFilter(testOrderRef)

	if filter["_id"] != testOrderRef {
		t.Fatalf("expected filter to pin the order id, got %v", filter["_id"])
	}
	deletedAt, ok := filter["deletedAt"]
	if !ok || deletedAt != nil {
		t.Fatalf("expected filter to require a live order, got %v", deletedAt)
	}
	cond, ok := filter["paymentStatus"].(bson.M)
	if !ok || cond["$ne"] != models.PaymentCompleted {
		t.Fatalf("expected filter to exclude completed orders, got %v", filter["paymentStatus"])
	}
}

func TestPaymentCompletionSetStampsPaidAt(t *testing.T) {
	amount := 150.0
	req := paymentWebhookRequest{
		TransferAmount: &amount,
		TransactionID:  42,
		Gateway:        "sepay",
		ReferenceCode:  "FT2024051234",
		Content:        "thanh toan don hang",
	}
	now := time.Now()

	update := paymentCompletionSet(req, now)
	set, ok := update["$set"].(bson.M)
	if !ok {
		t.Fatalf("expected a single $set document, got %v", update)
	}
	if set["paymentStatus"] != models.PaymentCompleted {
		t.Fatalf("expected completed status, got %v", set["paymentStatus"])
	}
	info, ok := set["paymentInfo"].(models.PaymentInfo)
	if !ok {
		t.Fatalf("expected embedded payment info, got %T", set["paymentInfo"])
	}
	if info.TransferAmount != 150 || info.TransactionID != 42 || info.Gateway != "sepay" {
		t.Fatalf("expected gateway metadata carried over, got %+v", info)
	}
	if info.PaidAt == nil || !info.PaidAt.Equal(now) {
		t.Fatalf("expected paidAt stamped with the completion instant, got %v", info.PaidAt)
	}
}

func webhookOrderDoc(id string, total float64, paymentStatus string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "totalAmount", Value: total},
		{Key: "deliveryStatus", Value: models.DeliveryPending},
		{Key: "paymentStatus", Value: paymentStatus},
	}
}

func deliverWebhook(mt *mtest.T, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/payment/sepay-callback", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Apikey secret")

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = req

	PaymentWebhook(mt.DB, "secret")(c)
	return recorder
}

func assertNoOrderWrite(mt *mtest.T) {
	for _, evt := range mt.GetAllStartedEvents() {
		if evt.CommandName == "update" {
			mt.Fatalf("expected no write, saw an update command")
		}
	}
}

func TestPaymentWebhookCompletesPendingOrder(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("pending order", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "storefront.orders", mtest.FirstBatch,
				webhookOrderDoc(testOrderRef, 100, models.PaymentPending)),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		recorder := deliverWebhook(mt, `{"transferType":"in","transferAmount":100,"code":"`+testOrderRef+`"}`)

		if recorder.Code != 200 {
			mt.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if !bytes.Contains(recorder.Body.Bytes(), []byte("Payment processed successfully")) {
			mt.Fatalf("expected processed acknowledgment, got %s", recorder.Body.String())
		}
	})
}

func TestPaymentWebhookSecondDeliveryLeavesPaymentUntouched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("already completed", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "storefront.orders", mtest.FirstBatch,
				webhookOrderDoc(testOrderRef, 100, models.PaymentCompleted)),
		)

		recorder := deliverWebhook(mt, `{"transferType":"in","transferAmount":100,"code":"`+testOrderRef+`"}`)

		if recorder.Code != 200 {
			mt.Fatalf("expected 200 for a retried delivery, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if !bytes.Contains(recorder.Body.Bytes(), []byte("Payment processed successfully")) {
			mt.Fatalf("expected idempotent acknowledgment, got %s", recorder.Body.String())
		}
		assertNoOrderWrite(mt)
	})
}

func TestPaymentWebhookRacedCompletionAcknowledged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("completed between read and write", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "storefront.orders", mtest.FirstBatch,
				webhookOrderDoc(testOrderRef, 100, models.PaymentPending)),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, "storefront.orders", mtest.FirstBatch,
				webhookOrderDoc(testOrderRef, 100, models.PaymentCompleted)),
		)

		recorder := deliverWebhook(mt, `{"transferType":"in","transferAmount":100,"code":"`+testOrderRef+`"}`)

		if recorder.Code != 200 {
			mt.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if !bytes.Contains(recorder.Body.Bytes(), []byte("Payment processed successfully")) {
			mt.Fatalf("expected idempotent acknowledgment, got %s", recorder.Body.String())
		}
	})
}

func TestPaymentWebhookDeletedDuringReconcile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deleted between read and write", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "storefront.orders", mtest.FirstBatch,
				webhookOrderDoc(testOrderRef, 100, models.PaymentPending)),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, "storefront.orders", mtest.FirstBatch),
		)

		recorder := deliverWebhook(mt, `{"transferType":"in","transferAmount":100,"code":"`+testOrderRef+`"}`)

		if recorder.Code != 200 {
			mt.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if !bytes.Contains(recorder.Body.Bytes(), []byte("Order not found")) {
			mt.Fatalf("expected not-found acknowledgment for a vanished order, got %s", recorder.Body.String())
		}
	})
}

func TestPaymentWebhookUnknownOrderAcknowledged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("no matching order", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "storefront.orders", mtest.FirstBatch),
		)

		recorder := deliverWebhook(mt, `{"transferType":"in","transferAmount":100,"code":"`+testOrderRef+`"}`)

		if recorder.Code != 200 {
			mt.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if !bytes.Contains(recorder.Body.Bytes(), []byte("Order not found")) {
			mt.Fatalf("expected not-found acknowledgment, got %s", recorder.Body.String())
		}
	})
}

func TestPaymentWebhookInsufficientAmountAcknowledged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("short transfer", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "storefront.orders", mtest.FirstBatch,
				webhookOrderDoc(testOrderRef, 500, models.PaymentPending)),
		)

		recorder := deliverWebhook(mt, `{"transferType":"in","transferAmount":100,"code":"`+testOrderRef+`"}`)

		if recorder.Code != 200 {
			mt.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if !bytes.Contains(recorder.Body.Bytes(), []byte("Payment amount insufficient")) {
			mt.Fatalf("expected insufficient acknowledgment, got %s", recorder.Body.String())
		}
		assertNoOrderWrite(mt)
	})
}

func TestPaymentWebhookRejectsBadAPIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	body := bytes.NewBufferString(`{"transferType":"in","transferAmount":100}`)
	req := httptest.NewRequest("POST", "/api/payment/sepay-callback", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Apikey wrong-secret")

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = req

	PaymentWebhook(nil, "right-secret")(c)

	if recorder.Code != 401 {
		t.Fatalf("expected 401 for wrong api key, got %d", recorder.Code)
	}
}

func TestPaymentWebhookRejectsMissingAmount(t *testing.T) {
	gin.SetMode(gin.TestMode)

	body := bytes.NewBufferString(`{"transferType":"in","content":"no amount here"}`)
	req := httptest.NewRequest("POST", "/api/payment/sepay-callback", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Apikey secret")

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = req

	PaymentWebhook(nil, "secret")(c)

	if recorder.Code != 400 {
		t.Fatalf("expected 400 for missing transferAmount, got %d", recorder.Code)
	}
}

func TestPaymentWebhookIgnoresOutboundTransfer(t *testing.T) {
	gin.SetMode(gin.TestMode)

	body := bytes.NewBufferString(`{"transferType":"out","transferAmount":100}`)
	req := httptest.NewRequest("POST", "/api/payment/sepay-callback", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Apikey secret")

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = req

	PaymentWebhook(nil, "secret")(c)

	if recorder.Code != 200 {
		t.Fatalf("expected 200 acknowledgment for outbound transfer, got %d", recorder.Code)
	}
	if !bytes.Contains(recorder.Body.Bytes(), []byte("not supported")) {
		t.Fatalf("expected not-supported message, got %s", recorder.Body.String())
	}
}
