package scoring

import "testing"

func TestApplyReplace(t *testing.T) {
	d := apply(ModeReplace, SortDesc, nil, 42)
	if !d.setScore || d.absScore != 42 {
		t.Fatalf("replace with no current: got %+v", d)
	}

	current := 10.0
	d = apply(ModeReplace, SortDesc, &current, 5)
	if !d.setScore || d.absScore != 5 {
		t.Fatalf("replace always overwrites regardless of direction: got %+v", d)
	}
}

func TestApplyIncrement(t *testing.T) {
	d := apply(ModeIncrement, SortDesc, nil, 3)
	if d.setScore || d.skip || d.incrScore != 3 {
		t.Fatalf("increment should always issue a ZINCRBY delta: got %+v", d)
	}

	current := 100.0
	d = apply(ModeIncrement, SortAsc, &current, -4)
	if d.setScore || d.incrScore != -4 {
		t.Fatalf("increment composes regardless of sort order: got %+v", d)
	}
}

func TestApplyBestPreservesMaxOnDesc(t *testing.T) {
	current := 50.0

	d := apply(ModeBest, SortDesc, &current, 40)
	if !d.skip {
		t.Fatalf("lower score on desc leaderboard must be skipped, got %+v", d)
	}

	d = apply(ModeBest, SortDesc, &current, 60)
	if d.skip || !d.setScore || d.absScore != 60 {
		t.Fatalf("higher score on desc leaderboard must overwrite, got %+v", d)
	}

	d = apply(ModeBest, SortDesc, &current, 50)
	if !d.skip {
		t.Fatalf("equal score is not an improvement and must be skipped, got %+v", d)
	}
}

func TestApplyBestPreservesMinOnAsc(t *testing.T) {
	current := 50.0

	d := apply(ModeBest, SortAsc, &current, 60)
	if !d.skip {
		t.Fatalf("higher score on asc leaderboard must be skipped, got %+v", d)
	}

	d = apply(ModeBest, SortAsc, &current, 40)
	if d.skip || !d.setScore || d.absScore != 40 {
		t.Fatalf("lower score on asc leaderboard must overwrite, got %+v", d)
	}
}

func TestApplyBestWithNoCurrentAlwaysWrites(t *testing.T) {
	d := apply(ModeBest, SortDesc, nil, 1)
	if d.skip || !d.setScore || d.absScore != 1 {
		t.Fatalf("first submission under best mode must always write, got %+v", d)
	}
}

func TestEffectiveModeForcesIncrementPerRequest(t *testing.T) {
	meta := Metadata{UpdateMode: ModeBest}

	if got := effectiveMode(meta, UpdateRequest{Increment: true}); got != ModeIncrement {
		t.Fatalf("request-level increment flag must override leaderboard mode, got %s", got)
	}
	if got := effectiveMode(meta, UpdateRequest{Increment: false}); got != ModeBest {
		t.Fatalf("without the flag the leaderboard's configured mode applies, got %s", got)
	}
}

func TestDefaultMetadataIsReplaceDesc(t *testing.T) {
	m := defaultMetadata()
	if m.UpdateMode != ModeReplace || m.SortOrder != SortDesc || m.TTLDays != 0 {
		t.Fatalf("unexpected default metadata: %+v", m)
	}
}
