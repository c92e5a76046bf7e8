package handlers

import (
	"testing"
	"time"

	"storefront/internal/models"
)

func TestParseUTCOffset(t *testing.T) {
	tests := []struct {
		offset  string
		seconds int
		wantErr bool
	}{
		{"+07:00", 7 * 3600, false},
		{"-03:30", -(3*3600 + 30*60), false},
		{"+00:00", 0, false},
		{"07:00", 0, true},
		{"+7:00", 0, true},
		{"+25:00", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		loc, err := parseUTCOffset(tt.offset)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected error for offset %q", tt.offset)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for offset %q: %v", tt.offset, err)
		}
		_, gotSeconds := time.Date(2024, 5, 1, 0, 0, 0, 0, loc).Zone()
		if gotSeconds != tt.seconds {
			t.Fatalf("offset %q: expected %d seconds, got %d", tt.offset, tt.seconds, gotSeconds)
		}
	}
}

func TestBucketRevenueDayBoundaryAtReportingOffset(t *testing.T) {
	loc, err := parseUTCOffset("+07:00")
	if err != nil {
		t.Fatalf("parseUTCOffset failed: %v", err)
	}

	// 16:30Z is 23:30 local on May 1; 17:30Z is 00:30 local on May 2. Both
	// fall on May 1 in UTC, so naive UTC grouping would merge them.
	orders := []models.Order{
		{TotalAmount: 100, CreatedAt: time.Date(2024, 5, 1, 16, 30, 0, 0, time.UTC)},
		{TotalAmount: 200, CreatedAt: time.Date(2024, 5, 1, 17, 30, 0, 0, time.UTC)},
	}

	daily, _ := bucketRevenue(orders, loc)
	if len(daily) != 2 {
		t.Fatalf("expected 2 daily buckets, got %d: %+v", len(daily), daily)
	}
	if daily[0].Key != "2024-05-01" || daily[0].Total != 100 || daily[0].Orders != 1 {
		t.Fatalf("unexpected first bucket: %+v", daily[0])
	}
	if daily[1].Key != "2024-05-02" || daily[1].Total != 200 || daily[1].Orders != 1 {
		t.Fatalf("unexpected second bucket: %+v", daily[1])
	}
}

func TestBucketRevenueMonthlyAcrossYearBoundary(t *testing.T) {
	loc, err := parseUTCOffset("+07:00")
	if err != nil {
		t.Fatalf("parseUTCOffset failed: %v", err)
	}

	orders := []models.Order{
		{TotalAmount: 50, CreatedAt: time.Date(2023, 12, 31, 18, 0, 0, 0, time.UTC)}, // Jan 1 local
		{TotalAmount: 70, CreatedAt: time.Date(2023, 12, 15, 10, 0, 0, 0, time.UTC)},
	}

	_, monthly := bucketRevenue(orders, loc)
	if len(monthly) != 2 {
		t.Fatalf("expected 2 monthly buckets, got %d: %+v", len(monthly), monthly)
	}
	if monthly[0].Key != "2023-12" || monthly[0].Total != 70 {
		t.Fatalf("unexpected December bucket: %+v", monthly[0])
	}
	if monthly[1].Key != "2024-01" || monthly[1].Total != 50 {
		t.Fatalf("unexpected January bucket: %+v", monthly[1])
	}
}

func TestBucketRevenueAggregatesSameDay(t *testing.T) {
	loc, _ := parseUTCOffset("+00:00")
	orders := []models.Order{
		{TotalAmount: 10.1, CreatedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)},
		{TotalAmount: 10.2, CreatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
	}

	daily, _ := bucketRevenue(orders, loc)
	if len(daily) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(daily))
	}
	if daily[0].Total != 20.3 {
		t.Fatalf("expected exact decimal sum 20.3, got %v", daily[0].Total)
	}
	if daily[0].Orders != 2 {
		t.Fatalf("expected 2 orders in bucket, got %d", daily[0].Orders)
	}
}

func TestSumRevenueIsExact(t *testing.T) {
	orders := make([]models.Order, 10)
	for i := range orders {
		orders[i] = models.Order{TotalAmount: 0.1}
	}
	if got := sumRevenue(orders); got != 1 {
		t.Fatalf("expected exact sum 1, got %v", got)
	}
}
