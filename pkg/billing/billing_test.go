package billing

import "testing"

func TestLimitsFor(t *testing.T) {
	tests := []struct {
		plan         PlanType
		wantRequests int64
	}{
		{PlanFree, 10_000},
		{PlanPro, 1_000_000},
		{PlanEnterprise, 10_000_000},
		{PlanType("unknown"), 10_000}, // falls back to free
	}

	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			got := LimitsFor(tt.plan)
			if got.Requests != tt.wantRequests {
				t.Errorf("LimitsFor(%s).Requests = %d, want %d", tt.plan, got.Requests, tt.wantRequests)
			}
		})
	}
}

func TestNewGauge(t *testing.T) {
	tests := []struct {
		name    string
		current int64
		limit   int64
		want    bool
	}{
		{"under limit", 5, 10, true},
		{"at limit", 10, 10, false},
		{"over limit", 11, 10, false},
		{"zero current", 0, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGauge(tt.current, tt.limit)
			if g.WithinLimit != tt.want {
				t.Errorf("newGauge(%d, %d).WithinLimit = %v, want %v", tt.current, tt.limit, g.WithinLimit, tt.want)
			}
		})
	}
}
