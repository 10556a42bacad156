package inventory

import (
	"context"
	"testing"
	"time"

	"bloodlink/internal/types"
)

func TestProjectExpiry_Boundaries(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name    string
		updated time.Time
		days    int
		status  ExpiryStatus
	}{
		{"40 days ago", now.Add(-40 * day), 2, ExpiryCritical},
		{"35 days ago", now.Add(-35 * day), 7, ExpiryWarning},
		{"10 days ago", now.Add(-10 * day), 32, ExpiryOK},
		{"34 days ago", now.Add(-34 * day), 8, ExpiryOK},
		{"past shelf life", now.Add(-50 * day), 0, ExpiryCritical},
		{"partial day rounds up", now.Add(-39*day - time.Hour), 3, ExpiryWarning},
		{"zero time treated as now", time.Time{}, 42, ExpiryOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views := ProjectExpiry([]Line{{BloodGroup: "O", Rh: "+", Units: 3, LastUpdated: tt.updated}}, now)
			if len(views) != 1 {
				t.Fatalf("views = %d", len(views))
			}
			v := views[0]
			if v.RemainingDays != tt.days {
				t.Errorf("RemainingDays = %d, want %d", v.RemainingDays, tt.days)
			}
			if v.Status != tt.status {
				t.Errorf("Status = %s, want %s", v.Status, tt.status)
			}
			if v.Units != 3 {
				t.Errorf("Units = %d", v.Units)
			}
		})
	}
}

func TestService_ExpiryUsesClock(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(hospitalA)
	svc := newTestService(store)
	updated := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return updated }
	if _, err := svc.Adjust(ctx, hospitalA, types.BloodType{Group: types.GroupB, Rh: types.RhPositive}, 2); err != nil {
		t.Fatal(err)
	}

	svc.now = func() time.Time { return updated.Add(40 * 24 * time.Hour) }
	views, err := svc.Expiry(ctx, hospitalA)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || views[0].Status != ExpiryCritical {
		t.Fatalf("views = %+v", views)
	}
	if want := updated.Add(ShelfLife); !views[0].ExpiryDate.Equal(want) {
		t.Errorf("ExpiryDate = %v, want %v", views[0].ExpiryDate, want)
	}
}
