package quant

import "testing"

func TestToPriceMicros(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want PriceMicros
	}{
		{"Whole", 100.0, 100000000},
		{"Fraction", 1.23, 1230000},
		{"Zero", 0, 0},
		{"Negative", -0.5, -500000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToPriceMicros(tt.in); got != tt.want {
				t.Errorf("ToPriceMicros(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	p := ToPriceMicros(9511.51)
	if got := p.Float64(); got != 9511.51 {
		t.Errorf("Float64() = %v, want 9511.51", got)
	}
	q := ToQtySats(0.004)
	if got := q.Float64(); got != 0.004 {
		t.Errorf("Float64() = %v, want 0.004", got)
	}
}

func TestParsePriceMicros(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    PriceMicros
		wantErr bool
	}{
		{"Whole", "100", 100000000, false},
		{"Fraction", "1.23", 1230000, false},
		{"Truncates", "0.1234567", 123456, false},
		{"Empty", "", 0, false},
		{"Negative", "-2.5", -2500000, false},
		{"Garbage", "abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePriceMicros(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePriceMicros(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePriceMicros(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseQtySats(t *testing.T) {
	got, err := ParseQtySats("0.00123")
	if err != nil {
		t.Fatalf("ParseQtySats: %v", err)
	}
	if got != 123000 {
		t.Errorf("ParseQtySats = %d, want 123000", got)
	}
}
