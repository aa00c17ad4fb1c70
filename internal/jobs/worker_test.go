package jobs

import (
	"strings"
	"testing"
)

func TestCompose(t *testing.T) {
	data := map[string]any{
		"court_name": "Centre Court",
		"start_time": "2026-03-02T10:00:00Z",
		// Numbers come back from JSONB as float64.
		"duration_hours": float64(2),
		"account_email":  "player@example.com",
	}

	cases := []struct {
		kind        string
		wantSubject string
		wantInBody  []string
	}{
		{KindConfirmation, "Booking Confirmation", []string{"You have booked Centre Court", "2026-03-02T10:00:00Z", "2 hours"}},
		{KindReminder, "Booking Reminder", []string{"Reminder", "Centre Court", "2 hours"}},
		{KindBookingChanged, "Booking Changed", []string{"moved to 2026-03-02T10:00:00Z"}},
		{KindCancellation, "Booking Cancelled", []string{"cancelled"}},
		{KindAdminNotification, "New Booking", []string{"player@example.com booked Centre Court"}},
		{KindAdminCancellation, "Booking Cancelled", []string{"player@example.com cancelled"}},
		{KindWorkerCleanup, "Cleaning Reminder", []string{"clean Centre Court for 10 minutes"}},
	}
	for _, tc := range cases {
		subject, body, err := Compose(tc.kind, data)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.kind, err)
			continue
		}
		if subject != tc.wantSubject {
			t.Errorf("%s: subject = %q, want %q", tc.kind, subject, tc.wantSubject)
		}
		for _, want := range tc.wantInBody {
			if !strings.Contains(body, want) {
				t.Errorf("%s: body %q missing %q", tc.kind, body, want)
			}
		}
	}
}

func TestCompose_UnknownKind(t *testing.T) {
	if _, _, err := Compose("telegram", nil); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
