package parser

import (
	"encoding/json"
	"fmt"

	"github.com/meridianfx/candle-writer/internal/domain"
)

// JSONTickParser converts raw bus payloads to domain ticks.
// It is stateless and safe for concurrent use.
type JSONTickParser struct{}

// NewJSONTickParser creates a new JSON tick parser.
func NewJSONTickParser() *JSONTickParser {
	return &JSONTickParser{}
}

// Parse converts one raw payload to a domain tick.
func (p *JSONTickParser) Parse(payload []byte) (*domain.Tick, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("payload cannot be empty")
	}

	var tick domain.Tick
	if err := json.Unmarshal(payload, &tick); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tick: %w", err)
	}

	if err := tick.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tick: %w", err)
	}

	return &tick, nil
}
