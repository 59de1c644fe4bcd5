package bus

import (
	"testing"
	"time"
)

func TestRedisReader_NextBackoff(t *testing.T) {
	reader := NewRedisReader(nil, "ticks.bidask",
		WithReaderBackoff(1*time.Second, 30*time.Second, 2.0),
	)

	tests := []struct {
		name    string
		current time.Duration
		want    time.Duration
	}{
		{name: "doubles", current: 1 * time.Second, want: 2 * time.Second},
		{name: "doubles again", current: 4 * time.Second, want: 8 * time.Second},
		{name: "caps at max", current: 20 * time.Second, want: 30 * time.Second},
		{name: "stays at max", current: 30 * time.Second, want: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reader.nextBackoff(tt.current); got != tt.want {
				t.Errorf("nextBackoff(%s) = %s, want %s", tt.current, got, tt.want)
			}
		})
	}
}

func TestRedisReader_Defaults(t *testing.T) {
	reader := NewRedisReader(nil, "ticks.bidask")

	if reader.baseBackoff != 1*time.Second {
		t.Errorf("baseBackoff = %s, want 1s", reader.baseBackoff)
	}
	if reader.maxBackoff != 30*time.Second {
		t.Errorf("maxBackoff = %s, want 30s", reader.maxBackoff)
	}
	if reader.backoffFactor != 2.0 {
		t.Errorf("backoffFactor = %v, want 2.0", reader.backoffFactor)
	}
	if reader.channel != "ticks.bidask" {
		t.Errorf("channel = %q, want ticks.bidask", reader.channel)
	}
}
