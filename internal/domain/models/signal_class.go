package models

import (
	"fmt"
	"strings"
)

// SignalClass is the three-way trading decision class. The integer values
// match the index order of predictor probability vectors: SELL, HOLD, BUY.
type SignalClass int

const (
	ClassSell SignalClass = iota
	ClassHold
	ClassBuy
)

// ClassCount is the number of decision classes a predictor must emit.
const ClassCount = 3

func (c SignalClass) String() string {
	switch c {
	case ClassSell:
		return "SELL"
	case ClassHold:
		return "HOLD"
	case ClassBuy:
		return "BUY"
	default:
		return fmt.Sprintf("SignalClass(%d)", int(c))
	}
}

// ParseSignalClass converts a config string to a SignalClass.
func ParseSignalClass(s string) (SignalClass, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SELL":
		return ClassSell, nil
	case "HOLD":
		return ClassHold, nil
	case "BUY":
		return ClassBuy, nil
	default:
		return ClassHold, fmt.Errorf("unknown signal class %q", s)
	}
}

// tieOrder is the fixed priority applied when probabilities tie: HOLD wins
// any tie, SELL beats BUY. Never random.
var tieOrder = [ClassCount]SignalClass{ClassHold, ClassSell, ClassBuy}

// ArgmaxClass picks the class with the highest probability. Ties resolve by
// the fixed priority HOLD > SELL > BUY.
func ArgmaxClass(probs []float64) (SignalClass, float64) {
	best := tieOrder[0]
	bestP := probs[int(best)]
	for _, c := range tieOrder[1:] {
		if int(c) < len(probs) && probs[int(c)] > bestP {
			best = c
			bestP = probs[int(c)]
		}
	}
	return best, bestP
}
