package persistence

import (
	"testing"

	"github.com/meridianfx/candle-writer/internal/domain"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		name       string
		candleType domain.CandleType
		instrument string
		want       string
	}{
		{name: "minute table", candleType: domain.CandleTypeMinute, instrument: "EURUSD", want: "EURUSD0"},
		{name: "hour table", candleType: domain.CandleTypeHour, instrument: "EURUSD", want: "EURUSD1"},
		{name: "day table", candleType: domain.CandleTypeDay, instrument: "EURUSD", want: "EURUSD2"},
		{name: "month table", candleType: domain.CandleTypeMonth, instrument: "EURUSD", want: "EURUSD3"},
		{name: "dots stripped", candleType: domain.CandleTypeMinute, instrument: "EUR.USD", want: "EURUSD0"},
		{name: "multiple dots stripped", candleType: domain.CandleTypeDay, instrument: "BRK.B.X", want: "BRKBX2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TableName(tt.candleType, tt.instrument); got != tt.want {
				t.Errorf("TableName(%v, %q) = %q, want %q", tt.candleType, tt.instrument, got, tt.want)
			}
		})
	}
}

func TestParseTableName(t *testing.T) {
	tests := []struct {
		name           string
		table          string
		wantType       domain.CandleType
		wantInstrument string
		wantErr        bool
	}{
		{name: "minute table", table: "EURUSD0", wantType: domain.CandleTypeMinute, wantInstrument: "EURUSD"},
		{name: "month table", table: "EURUSD3", wantType: domain.CandleTypeMonth, wantInstrument: "EURUSD"},
		{name: "prefixed table", table: "CANDLEEURUSD1", wantType: domain.CandleTypeHour, wantInstrument: "EURUSD"},
		{name: "bad ordinal", table: "EURUSD7", wantErr: true},
		{name: "non-numeric suffix", table: "EURUSDX", wantErr: true},
		{name: "too short", table: "0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotInstrument, err := ParseTableName(tt.table)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseTableName(%q) error = %v, wantErr %v", tt.table, err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if gotType != tt.wantType || gotInstrument != tt.wantInstrument {
				t.Errorf("ParseTableName(%q) = (%v, %q), want (%v, %q)",
					tt.table, gotType, gotInstrument, tt.wantType, tt.wantInstrument)
			}
		})
	}
}

func TestTableName_RoundTrip(t *testing.T) {
	for _, candleType := range domain.CandleTypes {
		name := TableName(candleType, "GBPJPY")
		gotType, gotInstrument, err := ParseTableName(name)
		if err != nil {
			t.Fatalf("ParseTableName(%q) error = %v", name, err)
		}
		if gotType != candleType || gotInstrument != "GBPJPY" {
			t.Errorf("round trip of %q = (%v, %q), want (%v, GBPJPY)", name, gotType, gotInstrument, candleType)
		}
	}
}
