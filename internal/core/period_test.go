package core

import (
	"testing"
	"time"
)

func TestPeriodNext(t *testing.T) {
	cases := []struct {
		in, want Period
	}{
		{Period{2024, time.November}, Period{2024, time.December}},
		{Period{2024, time.December}, Period{2025, time.January}},
		{Period{2025, time.January}, Period{2025, time.February}},
	}
	for _, tc := range cases {
		if got := tc.in.Next(); got != tc.want {
			t.Errorf("%s.Next() = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestPeriodOfEndOfMonthDoesNotOverflow(t *testing.T) {
	// January 31st plus one month is February, never March.
	now := time.Date(2025, time.January, 31, 22, 0, 0, 0, time.UTC)
	if got := PeriodOf(now).Next(); got != (Period{2025, time.February}) {
		t.Fatalf("got %s, want 2025-02", got)
	}
}

func TestPeriodAddMonthsNegative(t *testing.T) {
	if got := (Period{2025, time.February}).AddMonths(-3); got != (Period{2024, time.November}) {
		t.Fatalf("got %s, want 2024-11", got)
	}
}

func TestPeriodLabelAndSlug(t *testing.T) {
	p := Period{2024, time.December}
	if got := p.Label(); got != "dezembro de 2024" {
		t.Fatalf("label = %q", got)
	}
	if got := p.Slug(); got != "dezembro-de-2024" {
		t.Fatalf("slug = %q", got)
	}
	if got := (Period{2024, time.March}).Label(); got != "março de 2024" {
		t.Fatalf("label = %q", got)
	}
}
