package validator

import (
	"testing"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		got := IsEmpty(c.input)
		if got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsValidDate(t *testing.T) {
	valid := []string{"2025-03-14", "2024-02-29"}
	invalid := []string{"2025-02-29", "2025-13-01", "2025/03/14", "14-03-2025", ""}
	for _, s := range valid {
		_, ok := IsValidDate(s)
		if !ok {
			t.Errorf("IsValidDate(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		_, ok := IsValidDate(s)
		if ok {
			t.Errorf("IsValidDate(%q) = true, want false", s)
		}
	}
}

func TestIsValidClock(t *testing.T) {
	cases := []struct {
		input      string
		want       bool
		hour, mins int
	}{
		{"00:00", true, 0, 0},
		{"09:30", true, 9, 30},
		{"23:59", true, 23, 59},
		{"24:00", false, 0, 0},
		{"12:60", false, 0, 0},
		{"noon", false, 0, 0},
		{"", false, 0, 0},
	}
	for _, c := range cases {
		got, ok := IsValidClock(c.input)
		if ok != c.want {
			t.Errorf("IsValidClock(%q) ok = %v, want %v", c.input, ok, c.want)
			continue
		}
		if ok && (got.Hour() != c.hour || got.Minute() != c.mins) {
			t.Errorf("IsValidClock(%q) = %02d:%02d, want %02d:%02d", c.input, got.Hour(), got.Minute(), c.hour, c.mins)
		}
	}
}

func TestIsInSlice(t *testing.T) {
	kinds := []string{"work", "break"}
	if !IsInSlice("work", kinds) {
		t.Error("IsInSlice(work) = false, want true")
	}
	if IsInSlice("travail", kinds) {
		t.Error("IsInSlice(travail) = true, want false")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "start_date", Message: "invalid"},
		{Field: "end_date", Message: "required"},
	}
	got := errs.Error()
	want := "start_date: invalid; end_date: required"
	if got != want {
		t.Errorf("ValidationErrors.Error() = %q, want %q", got, want)
	}
}

func TestValidationErrors_ToMap(t *testing.T) {
	errs := ValidationErrors{
		{Field: "start_date", Message: "invalid"},
		{Field: "end_date", Message: "required"},
	}
	got := errs.ToMap()
	want := map[string]string{"start_date": "invalid", "end_date": "required"}
	if len(got) != len(want) {
		t.Errorf("ValidationErrors.ToMap() length = %d, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("ValidationErrors.ToMap()[%q] = %q, want %q", k, got[k], v)
		}
	}
}
