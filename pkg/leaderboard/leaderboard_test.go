package leaderboard

import "testing"

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func TestMetadataAffectingDetectsRelevantFields(t *testing.T) {
	current := Leaderboard{Name: "weekly", SortOrder: "desc", UpdateMode: "replace", TTLDays: 7}

	cases := []struct {
		name string
		req  UpdateRequest
		want bool
	}{
		{"name change", UpdateRequest{Name: strPtr("monthly")}, true},
		{"same name", UpdateRequest{Name: strPtr("weekly")}, false},
		{"sort order change", UpdateRequest{SortOrder: strPtr("asc")}, true},
		{"update mode change", UpdateRequest{UpdateMode: strPtr("best")}, true},
		{"ttl change", UpdateRequest{TTLDays: intPtr(30)}, true},
		{"description only", UpdateRequest{Description: strPtr("new desc")}, false},
		{"active flag only", UpdateRequest{IsActive: boolPtr(false)}, false},
		{"no fields", UpdateRequest{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := metadataAffecting(current, tc.req); got != tc.want {
				t.Fatalf("metadataAffecting() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestApplyUpdateMergesOnlySetFields(t *testing.T) {
	current := Leaderboard{
		Name:        "weekly",
		Description: "original",
		SortOrder:   "desc",
		UpdateMode:  "replace",
		TTLDays:     7,
		IsActive:    true,
	}

	next := applyUpdate(current, UpdateRequest{
		Name:    strPtr("monthly"),
		TTLDays: intPtr(30),
	})

	if next.Name != "monthly" || next.TTLDays != 30 {
		t.Fatalf("set fields must be applied: %+v", next)
	}
	if next.Description != "original" || next.SortOrder != "desc" || next.UpdateMode != "replace" || !next.IsActive {
		t.Fatalf("unset fields must be left unchanged: %+v", next)
	}
}

func TestApplyUpdateIsPure(t *testing.T) {
	current := Leaderboard{Name: "weekly"}
	_ = applyUpdate(current, UpdateRequest{Name: strPtr("monthly")})

	if current.Name != "weekly" {
		t.Fatalf("applyUpdate must not mutate its input, got %q", current.Name)
	}
}
