package handlers

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

func TestBuildCartItemResponseUsesEffectivePrice(t *testing.T) {
	productID := primitive.NewObjectID()
	line := models.CartLine{ProductID: productID, Quantity: 3, Size: "M"}
	product := models.Product{ID: productID, Name: "Tee", Price: 100, SaleEnabled: true, SalePrice: 80}

	item := buildCartItemResponse(line, product)
	if item.Price != 80 {
		t.Fatalf("expected sale price 80, got %v", item.Price)
	}
	if item.Total != 240 {
		t.Fatalf("expected line total 240, got %v", item.Total)
	}
	if item.Size != "M" || item.Quantity != 3 {
		t.Fatalf("unexpected item: %+v", item)
	}
}

func TestParsePaginationParams(t *testing.T) {
	page, limit, err := parsePaginationParams("", "")
	if err != nil || page != 1 || limit != 20 {
		t.Fatalf("expected defaults 1/20, got %d/%d err=%v", page, limit, err)
	}

	page, limit, err = parsePaginationParams("3", "50")
	if err != nil || page != 3 || limit != 50 {
		t.Fatalf("expected 3/50, got %d/%d err=%v", page, limit, err)
	}

	if _, _, err := parsePaginationParams("0", "10"); err == nil {
		t.Fatal("expected error for page 0")
	}
	if _, _, err := parsePaginationParams("1", "abc"); err == nil {
		t.Fatal("expected error for non-numeric limit")
	}
}
