package parser

import (
	"testing"
)

func TestJSONTickParser_Parse(t *testing.T) {
	parser := NewJSONTickParser()

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "valid tick",
			payload: `{"id":"EURUSD","bid":25.55,"ask":36.55,"unix_time_sec":1662559404}`,
			wantErr: false,
		},
		{
			name:    "empty payload",
			payload: "",
			wantErr: true,
		},
		{
			name:    "malformed json",
			payload: `{"id":"EURUSD","bid":`,
			wantErr: true,
		},
		{
			name:    "missing id",
			payload: `{"bid":25.55,"ask":36.55,"unix_time_sec":1662559404}`,
			wantErr: true,
		},
		{
			name:    "zero timestamp",
			payload: `{"id":"EURUSD","bid":25.55,"ask":36.55,"unix_time_sec":0}`,
			wantErr: true,
		},
		{
			name:    "wrong field type",
			payload: `{"id":"EURUSD","bid":"high","ask":36.55,"unix_time_sec":1662559404}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tick, err := parser.Parse([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if tick == nil {
				t.Fatal("Parse() returned nil tick without error")
			}
		})
	}
}

func TestJSONTickParser_Parse_Fields(t *testing.T) {
	parser := NewJSONTickParser()

	tick, err := parser.Parse([]byte(`{"id":"EURUSD","bid":25.55,"ask":36.55,"unix_time_sec":1662559404}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if tick.Instrument != "EURUSD" {
		t.Errorf("Instrument = %q, want EURUSD", tick.Instrument)
	}
	if tick.Bid != 25.55 || tick.Ask != 36.55 {
		t.Errorf("prices = bid %v, ask %v; want 25.55, 36.55", tick.Bid, tick.Ask)
	}
	if tick.UnixTimeSec != 1662559404 {
		t.Errorf("UnixTimeSec = %d, want 1662559404", tick.UnixTimeSec)
	}
}
