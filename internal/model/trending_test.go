package model

import "testing"

func TestParseSince(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Since
		wantErr bool
	}{
		{"daily", "daily", SinceDaily, false},
		{"weekly", "weekly", SinceWeekly, false},
		{"monthly", "monthly", SinceMonthly, false},
		{"empty defaults to daily", "", SinceDaily, false},
		{"invalid", "hourly", "", true},
		{"case sensitive", "Daily", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSince(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSince(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSince(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
