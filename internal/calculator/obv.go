package calculator

import "MarketScreener/internal/model"

// scan is a left fold that keeps every intermediate state.
func scan[T, S any](xs []T, init S, step func(S, T) S) []S {
	out := make([]S, len(xs))
	state := init
	for i, x := range xs {
		state = step(state, x)
		out[i] = state
	}
	return out
}

type obvState struct {
	started   bool
	prevClose float64
	total     float64
}

func obvStep(st obvState, b model.OHLCV) obvState {
	if !st.started {
		return obvState{started: true, prevClose: b.Close}
	}
	total := st.total
	switch {
	case b.Close > st.prevClose:
		total += b.Volume
	case b.Close < st.prevClose:
		total -= b.Volume
	}
	return obvState{started: true, prevClose: b.Close, total: total}
}

// OBV returns on-balance volume seeded at zero on the first bar.
func OBV(bars []model.OHLCV) []float64 {
	states := scan(bars, obvState{}, obvStep)
	out := make([]float64, len(states))
	for i, st := range states {
		out[i] = st.total
	}
	return out
}
