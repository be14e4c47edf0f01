package gateway

import "testing"

func TestParamsForKnownPlans(t *testing.T) {
	cases := []struct {
		plan             string
		capacity, refill float64
	}{
		{"free", 10, 1},
		{"pro", 100, 50},
		{"enterprise", 500, 200},
	}

	for _, tc := range cases {
		t.Run(tc.plan, func(t *testing.T) {
			got := paramsFor(tc.plan)
			if got.capacity != tc.capacity || got.refill != tc.refill {
				t.Fatalf("paramsFor(%q) = %+v, want capacity=%v refill=%v", tc.plan, got, tc.capacity, tc.refill)
			}
		})
	}
}

func TestParamsForUnknownPlanFallsBackToFree(t *testing.T) {
	got := paramsFor("nonexistent")
	want := plansByType["free"]
	if got != want {
		t.Fatalf("paramsFor(unknown) = %+v, want free-plan default %+v", got, want)
	}
}

func TestParamsForEmptyPlanFallsBackToFree(t *testing.T) {
	got := paramsFor("")
	want := plansByType["free"]
	if got != want {
		t.Fatalf("paramsFor(\"\") = %+v, want free-plan default %+v", got, want)
	}
}
