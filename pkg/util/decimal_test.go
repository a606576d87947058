package util

import "testing"

func TestPercentChange(t *testing.T) {
	cases := []struct {
		from, to, want float64
	}{
		{1.00, 1.25, 25},
		{1.00, 0.95, -5},
		{3, 4, 33.33},
		{90000, 90000, 0},
	}
	for _, c := range cases {
		if got := PercentChange(c.from, c.to); got != c.want {
			t.Fatalf("PercentChange(%v, %v) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio(0, 0); got != 0 {
		t.Fatalf("Ratio(0,0) = %v", got)
	}
	if got := Ratio(2, 3); got != 66.67 {
		t.Fatalf("Ratio(2,3) = %v", got)
	}
	if got := Ratio(5, 5); got != 100 {
		t.Fatalf("Ratio(5,5) = %v", got)
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" btc, ,ETH,")
	if len(got) != 2 || got[0] != "btc" || got[1] != "ETH" {
		t.Fatalf("SplitCSV = %v", got)
	}
	if NormalizeSymbol(" sui ") != "SUI" {
		t.Fatalf("NormalizeSymbol failed")
	}
}
