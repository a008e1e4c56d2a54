package config

import (
	"testing"
	"time"
)

func TestSplitAndTrimCSV(t *testing.T) {
	got := SplitAndTrimCSV(" a , b ,, c")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSplitAndTrimCSVEmpty(t *testing.T) {
	if got := SplitAndTrimCSV(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestGetEnvFallsBackToDefault(t *testing.T) {
	if got := GetEnv("DOCUINDEX_UNSET_VAR", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestGetEnvIntInvalidFallsBackToDefault(t *testing.T) {
	t.Setenv("DOCUINDEX_TEST_INT", "not-a-number")
	if got := GetEnvInt("DOCUINDEX_TEST_INT", 42); got != 42 {
		t.Fatalf("expected default 42, got %d", got)
	}
}

func TestGetEnvBoolAcceptsYesVariants(t *testing.T) {
	t.Setenv("DOCUINDEX_TEST_BOOL", "Yes")
	if !GetEnvBool("DOCUINDEX_TEST_BOOL", false) {
		t.Fatal("expected Yes to parse as true")
	}
}

func TestParseByteSize(t *testing.T) {
	cases := map[string]int64{
		"512":   512,
		"1kb":   1024,
		"2MB":   2 * 1024 * 1024,
		"1gib":  1024 * 1024 * 1024,
	}
	for raw, want := range cases {
		got, err := ParseByteSize(raw)
		if err != nil {
			t.Fatalf("ParseByteSize(%q): %v", raw, err)
		}
		if got != want {
			t.Errorf("ParseByteSize(%q) = %d, want %d", raw, got, want)
		}
	}
}

func TestParseByteSizeRejectsEmptyAndNonPositive(t *testing.T) {
	if _, err := ParseByteSize(""); err == nil {
		t.Fatal("expected error for empty size")
	}
	if _, err := ParseByteSize("-5mb"); err == nil {
		t.Fatal("expected error for negative size")
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	if got := ParseDurationOrDefault("5s", time.Minute); got != 5*time.Second {
		t.Fatalf("expected 5s, got %v", got)
	}
	if got := ParseDurationOrDefault("not-a-duration", time.Minute); got != time.Minute {
		t.Fatalf("expected default fallback, got %v", got)
	}
}
