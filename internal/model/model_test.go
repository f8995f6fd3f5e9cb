package model

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "06:00", want: Clock{6, 0}},
		{in: "22:30:15", want: Clock{22, 30}},
		{in: " 7:05 ", want: Clock{7, 5}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTimeWindowDuration(t *testing.T) {
	tests := []struct {
		start, end string
		want       time.Duration
	}{
		{"06:00", "14:00", 8 * time.Hour},
		{"22:00", "06:00", 8 * time.Hour},
		{"08:00", "08:00", 24 * time.Hour},
		{"07:30", "16:15", 8*time.Hour + 45*time.Minute},
	}
	for _, tt := range tests {
		w := TimeWindow{Start: MustParseClock(tt.start), End: MustParseClock(tt.end)}
		if got := w.Duration(); got != tt.want {
			t.Errorf("%s-%s duration = %v, want %v", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestDateArithmetic(t *testing.T) {
	d := MustParseDate("2024-02-28")
	if got := d.AddDays(1).String(); got != "2024-02-29" {
		t.Errorf("AddDays(1) = %s", got)
	}
	if got := d.AddDays(2).String(); got != "2024-03-01" {
		t.Errorf("AddDays(2) = %s", got)
	}
	if got := MustParseDate("2024-01-05").DaysSince(MustParseDate("2024-01-01")); got != 4 {
		t.Errorf("DaysSince = %d, want 4", got)
	}
	if got := MustParseDate("2023-12-30").DaysSince(MustParseDate("2024-01-01")); got != -2 {
		t.Errorf("DaysSince = %d, want -2", got)
	}
	if DaysInMonth(2024, time.February) != 29 || DaysInMonth(2023, time.February) != 28 {
		t.Error("leap year month length wrong")
	}
	if !MustParseDate("2024-01-06").IsWeekend() || MustParseDate("2024-01-08").IsWeekend() {
		t.Error("weekend detection wrong")
	}
}

func TestDateText(t *testing.T) {
	var d Date
	if err := d.UnmarshalText([]byte("2030-12-31")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	b, _ := d.MarshalText()
	if string(b) != "2030-12-31" {
		t.Errorf("MarshalText = %s", b)
	}
	if err := d.UnmarshalText([]byte("31.12.2030")); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestShiftTypeIsFree(t *testing.T) {
	st := ShiftTypeDefinition{
		Times: map[string]TimeWindow{"M": {Start: Clock{6, 0}, End: Clock{14, 0}}, "L": {}},
	}
	if st.IsFree("M") {
		t.Error("M should be a work day")
	}
	if !st.IsFree("L") {
		t.Error("L is the free-day sentinel even when it has a window")
	}
	if !st.IsFree("X") {
		t.Error("codes without a window are free")
	}
}
