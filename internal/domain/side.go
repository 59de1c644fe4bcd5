package domain

// Side selects the bid or ask stream of an instrument. Every tick
// carries both; each side maintains independent candles.
type Side int

const (
	SideBid Side = iota
	SideAsk
)

// Sides lists both sides in the order restore and checkpoint iterate them.
var Sides = [2]Side{SideBid, SideAsk}

// String returns a human-readable name for logging.
func (s Side) String() string {
	if s == SideBid {
		return "bid"
	}
	return "ask"
}
