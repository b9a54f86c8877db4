package products

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDeriveExpiry(t *testing.T) {
	tests := []struct {
		name string
		prod Date
		days int
		want Date
	}{
		{name: "within month", prod: NewDate(2024, time.January, 1), days: 7, want: NewDate(2024, time.January, 8)},
		{name: "crosses month", prod: NewDate(2024, time.January, 28), days: 5, want: NewDate(2024, time.February, 2)},
		{name: "leap day", prod: NewDate(2024, time.February, 28), days: 1, want: NewDate(2024, time.February, 29)},
		{name: "crosses year", prod: NewDate(2023, time.December, 30), days: 3, want: NewDate(2024, time.January, 2)},
		{name: "long shelf life", prod: NewDate(2024, time.March, 10), days: 365, want: NewDate(2025, time.March, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveExpiry(tt.prod, tt.days)
			if got != tt.want {
				t.Fatalf("want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestDeriveExpiry_RoundTrip(t *testing.T) {
	start := NewDate(2023, time.January, 1)
	for offset := 0; offset < 800; offset += 13 {
		prod := start.AddDays(offset)
		for _, days := range []int{1, 2, 7, 30, 31, 59, 60, 365, 366, 1000} {
			expiry := DeriveExpiry(prod, days)
			if diff := expiry.DaysSince(prod); diff != days {
				t.Fatalf("prod %s + %d days = %s, difference %d", prod, days, expiry, diff)
			}
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		days int
		want Status
	}{
		{days: -365, want: StatusExpired},
		{days: -1, want: StatusExpired},
		{days: 0, want: StatusDueSoon},
		{days: 3, want: StatusDueSoon},
		{days: 7, want: StatusDueSoon},
		{days: 8, want: StatusSafe},
		{days: 400, want: StatusSafe},
	}

	for _, tt := range tests {
		if got := Classify(tt.days); got != tt.want {
			t.Fatalf("Classify(%d): want %s, got %s", tt.days, tt.want, got)
		}
	}
}

func TestMilkScenario(t *testing.T) {
	prod := NewDate(2024, time.January, 1)
	expiry := DeriveExpiry(prod, 7)
	if expiry.String() != "2024-01-08" {
		t.Fatalf("want expiry 2024-01-08, got %s", expiry)
	}

	days := DaysUntilExpiry(expiry, NewDate(2024, time.January, 5))
	if days != 3 {
		t.Fatalf("want 3 days until expiry, got %d", days)
	}
	if status := Classify(days); status != StatusDueSoon {
		t.Fatalf("want %s, got %s", StatusDueSoon, status)
	}
}

func TestDescribe(t *testing.T) {
	p := Product{ID: 1, Name: "Milk", ExpiryDate: NewDate(2024, time.January, 8)}

	tests := []struct {
		today      Date
		wantStatus Status
		wantText   string
	}{
		{today: NewDate(2024, time.January, 11), wantStatus: StatusExpired, wantText: "expired 3 days ago"},
		{today: NewDate(2024, time.January, 9), wantStatus: StatusExpired, wantText: "expired yesterday"},
		{today: NewDate(2024, time.January, 8), wantStatus: StatusDueSoon, wantText: "expires today"},
		{today: NewDate(2024, time.January, 7), wantStatus: StatusDueSoon, wantText: "expires tomorrow"},
		{today: NewDate(2024, time.January, 5), wantStatus: StatusDueSoon, wantText: "3 days left"},
		{today: NewDate(2023, time.December, 20), wantStatus: StatusSafe, wantText: "19 days left"},
	}

	for _, tt := range tests {
		v := Describe(p, tt.today)
		if v.Status != tt.wantStatus {
			t.Fatalf("today %s: want status %s, got %s", tt.today, tt.wantStatus, v.Status)
		}
		if v.StatusText != tt.wantText {
			t.Fatalf("today %s: want text %q, got %q", tt.today, tt.wantText, v.StatusText)
		}
	}
}

func TestToday(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	now := time.Date(2024, time.January, 1, 20, 0, 0, 0, time.UTC)

	if got := Today(now, time.UTC); got != NewDate(2024, time.January, 1) {
		t.Fatalf("want 2024-01-01 in UTC, got %s", got)
	}
	if got := Today(now, tokyo); got != NewDate(2024, time.January, 2) {
		t.Fatalf("want 2024-01-02 in JST, got %s", got)
	}
}

func TestDate_JSON(t *testing.T) {
	p := Product{ID: 3, Name: "Cheese", ProductionDate: NewDate(2024, time.May, 2), ShelfLifeDays: 10, ExpiryDate: NewDate(2024, time.May, 12)}

	body, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":3,"name":"Cheese","production_date":"2024-05-02","shelf_life_days":10,"expiry_date":"2024-05-12"}`
	if string(body) != want {
		t.Fatalf("want %s, got %s", want, body)
	}

	var d Date
	if err := json.Unmarshal([]byte(`"2024-13-01"`), &d); err == nil {
		t.Fatal("expected error for invalid month")
	}
}

func TestDate_ZeroJSON(t *testing.T) {
	body, err := json.Marshal(Date{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(body) != `""` {
		t.Fatalf("want empty string, got %s", body)
	}

	for _, raw := range []string{`""`, `null`} {
		d := NewDate(2024, time.January, 1)
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if !d.IsZero() {
			t.Fatalf("unmarshal %s: want zero date, got %v", raw, d)
		}
	}
}

func TestDate_RoundTripAtMaxDate(t *testing.T) {
	in, err := ParseInput("Honey", "2024-01-01", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in.ShelfLifeDays = MaxDate.DaysSince(in.ProductionDate)
	if err := in.Validate(); err != nil {
		t.Fatalf("want largest shelf life accepted, got %v", err)
	}

	expiry := DeriveExpiry(in.ProductionDate, in.ShelfLifeDays)
	parsed, err := ParseDate(expiry.String())
	if err != nil || parsed != MaxDate {
		t.Fatalf("want %s to parse back, got %v (%v)", expiry, parsed, err)
	}

	in.ShelfLifeDays++
	if ve, ok := IsValidation(in.Validate()); !ok || ve.Field != FieldShelfLifeDays {
		t.Fatalf("want shelf life validation error, got %v", ve)
	}
}

func TestDate_Scan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want Date
	}{
		{name: "time", src: time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC), want: NewDate(2024, time.June, 3)},
		{name: "bytes", src: []byte("2024-06-03"), want: NewDate(2024, time.June, 3)},
		{name: "timestamp string", src: "2024-06-03T00:00:00Z", want: NewDate(2024, time.June, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			if err := d.Scan(tt.src); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d != tt.want {
				t.Fatalf("want %s, got %s", tt.want, d)
			}
		})
	}

	var d Date
	if err := d.Scan(42); err == nil {
		t.Fatal("expected error for int source")
	}
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		name      string
		rawName   string
		rawDate   string
		rawDays   string
		wantField string
		want      Input
	}{
		{
			name:    "valid",
			rawName: "  Milk ",
			rawDate: "2024-01-01",
			rawDays: "7",
			want:    Input{Name: "Milk", ProductionDate: NewDate(2024, time.January, 1), ShelfLifeDays: 7},
		},
		{name: "empty name", rawName: " ", rawDate: "2024-01-01", rawDays: "7", wantField: FieldName},
		{name: "empty shelf life", rawName: "Milk", rawDate: "2024-01-01", rawDays: "", wantField: FieldShelfLifeDays},
		{name: "bad date", rawName: "Milk", rawDate: "01/01/2024", rawDays: "7", wantField: FieldProductionDate},
		{name: "zero shelf life", rawName: "Milk", rawDate: "2024-01-01", rawDays: "0", wantField: FieldShelfLifeDays},
		{name: "negative shelf life", rawName: "Milk", rawDate: "2024-01-01", rawDays: "-3", wantField: FieldShelfLifeDays},
		{name: "non numeric shelf life", rawName: "Milk", rawDate: "2024-01-01", rawDays: "week", wantField: FieldShelfLifeDays},
		{name: "expiry past max date", rawName: "Honey", rawDate: "2024-01-01", rawDays: "3000000", wantField: FieldShelfLifeDays},
		{name: "shelf life out of int range", rawName: "Honey", rawDate: "2024-01-01", rawDays: "99999999999999999999", wantField: FieldShelfLifeDays},
		{
			name:    "expiry on max date",
			rawName: "Honey",
			rawDate: "9999-12-30",
			rawDays: "1",
			want:    Input{Name: "Honey", ProductionDate: NewDate(9999, time.December, 30), ShelfLifeDays: 1},
		},
		{name: "name too long", rawName: strings.Repeat("a", MaxNameLength+1), rawDate: "2024-01-01", rawDays: "7", wantField: FieldName},
		{
			name:    "name at max length",
			rawName: strings.Repeat("é", MaxNameLength),
			rawDate: "2024-01-01",
			rawDays: "7",
			want:    Input{Name: strings.Repeat("é", MaxNameLength), ProductionDate: NewDate(2024, time.January, 1), ShelfLifeDays: 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ParseInput(tt.rawName, tt.rawDate, tt.rawDays)
			if tt.wantField != "" {
				ve, ok := IsValidation(err)
				if !ok {
					t.Fatalf("want validation error, got %v", err)
				}
				if ve.Field != tt.wantField {
					t.Fatalf("want field %q, got %q (%s)", tt.wantField, ve.Field, ve.Message)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if in != tt.want {
				t.Fatalf("want %+v, got %+v", tt.want, in)
			}
		})
	}
}

func TestValidate_RejectsInconsistentExpiry(t *testing.T) {
	p := Product{
		Name:           "Bread",
		ProductionDate: NewDate(2024, time.January, 1),
		ShelfLifeDays:  3,
		ExpiryDate:     NewDate(2024, time.January, 5),
	}
	if _, ok := IsValidation(Validate(p)); !ok {
		t.Fatal("want validation error for inconsistent expiry date")
	}

	p.ExpiryDate = DeriveExpiry(p.ProductionDate, p.ShelfLifeDays)
	if err := Validate(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wrapped := errors.Join(errors.New("context"), NewValidationError(FieldName, "x"))
	if _, ok := IsValidation(wrapped); !ok {
		t.Fatal("want wrapped validation error to match")
	}
}
