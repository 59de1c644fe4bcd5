package persistence

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/meridianfx/candle-writer/internal/domain"
)

// instrumentTablePrefix is the legacy long-form prefix some deployments
// carry on instrument table names.
const instrumentTablePrefix = "CANDLE"

// TableName derives the durable table name for one instrument and
// granularity: the instrument id with '.' removed, suffixed with the
// granularity's ordinal code (EURUSD0 is the minute table of EUR.USD).
func TableName(candleType domain.CandleType, instrument string) string {
	id := strings.ReplaceAll(instrument, ".", "")
	return fmt.Sprintf("%s%d", id, candleType.Ordinal())
}

// PrefixedInstrumentName returns the long-form table name for an
// instrument id.
func PrefixedInstrumentName(instrument string) string {
	return instrumentTablePrefix + instrument
}

// StripInstrumentPrefix removes the long-form prefix if present.
func StripInstrumentPrefix(name string) string {
	return strings.TrimPrefix(name, instrumentTablePrefix)
}

// ParseTableName splits a durable table name back into granularity and
// instrument id. An unparseable granularity ordinal indicates corrupt
// metadata and is returned as an error.
func ParseTableName(name string) (domain.CandleType, string, error) {
	if len(name) < 2 {
		return 0, "", fmt.Errorf("table name %q too short", name)
	}

	code, err := strconv.Atoi(name[len(name)-1:])
	if err != nil {
		return 0, "", fmt.Errorf("table name %q: %w", name, err)
	}

	candleType, err := domain.ParseCandleType(code)
	if err != nil {
		return 0, "", fmt.Errorf("table name %q: %w", name, err)
	}

	return candleType, StripInstrumentPrefix(name[:len(name)-1]), nil
}
