package format

import "testing"

func TestDate(t *testing.T) {
	cases := map[string]string{
		"2026-03-07":           "07-03-26",
		"2026-12-31T22:00:00Z": "31-12-26",
		"not a date":           "not a date",
	}
	for in, want := range cases {
		if got := Date(in); got != want {
			t.Fatalf("Date(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMoney(t *testing.T) {
	cases := map[int]string{100: "100", 2500: "2,500", 99999: "99,999"}
	for in, want := range cases {
		if got := Money(in); got != want {
			t.Fatalf("Money(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestParsePrice(t *testing.T) {
	if n, ok := ParsePrice("2,500"); !ok || n != 2500 {
		t.Fatalf("unexpected %d %v", n, ok)
	}
	for _, raw := range []string{"", "abc", "2.5"} {
		if _, ok := ParsePrice(raw); ok {
			t.Fatalf("expected %q to fail", raw)
		}
	}
}
