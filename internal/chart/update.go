package chart

import (
	"fmt"
	"slices"

	"go.uber.org/zap/zapcore"
)

// Update applies ev to s. It never mutates s in place and performs no I/O:
// every side effect is returned for the caller to execute in order.
func Update(s State, ev Event) (State, []Effect) {
	s.Symbols = slices.Clone(s.Symbols)
	s.Kinds = slices.Clone(s.Kinds)

	switch ev := ev.(type) {
	case Start:
		if s.Phase != PhaseUninitialized {
			return s, logf(zapcore.DebugLevel, "chart already started (%s)", s.Phase)
		}
		return initialize(s)

	case KindSelected:
		if !slices.Contains(s.Kinds, ev.Kind) {
			return s, logf(zapcore.WarnLevel, "kind %q is not selectable", ev.Kind)
		}
		if ev.Kind == s.Kind && s.Phase != PhaseUninitialized {
			return s, nil
		}
		s.Kind = ev.Kind

		var effects []Effect
		if s.View != 0 {
			effects = append(effects, Finalize{View: s.View})
		}
		s.View = 0
		s.Dataset = ""
		var init []Effect
		s, init = initialize(s)
		return s, append(effects, init...)

	case SymbolSelected:
		if !slices.Contains(s.Symbols, ev.Symbol) {
			return s, logf(zapcore.WarnLevel, "symbol %q is not selectable", ev.Symbol)
		}
		if ev.Symbol == s.Symbol && s.Phase != PhaseUninitialized {
			return s, nil
		}
		s.Symbol = ev.Symbol

		if s.View == 0 {
			// nothing to patch yet
			return initialize(s)
		}
		s.Gen++
		s.Phase = PhaseUpdating
		return s, []Effect{Fetch{URL: s.DataURL(), Gen: s.Gen, Purpose: PurposeUpdate}}

	case PayloadFetched:
		if ev.Gen != s.Gen {
			return s, stale("payload", ev.Gen, s.Gen)
		}
		if ev.Purpose == PurposeInitialize || s.View == 0 {
			return s, []Effect{Embed{Gen: s.Gen, Payload: ev.Payload}}
		}
		return s, []Effect{Patch{Gen: s.Gen, View: s.View, Dataset: s.Dataset, Records: ev.Payload.Records}}

	case FetchFailed:
		if ev.Gen != s.Gen {
			return s, stale("fetch failure", ev.Gen, s.Gen)
		}
		effects := []Effect{Log{Level: zapcore.ErrorLevel, Msg: fmt.Sprintf("fetch for %s failed", ev.Purpose), Err: ev.Err}}
		if s.View == 0 {
			s.Phase = PhaseUninitialized
		} else {
			s.Phase = PhaseRendered
		}
		return s, effects

	case ViewEmbedded:
		if ev.Gen != s.Gen {
			return s, append(stale("view", ev.Gen, s.Gen), Finalize{View: ev.View})
		}
		s.View = ev.View
		s.Dataset = ev.Dataset
		s.Phase = PhaseRendered
		return s, nil

	case EmbedFailed:
		if ev.Gen != s.Gen {
			return s, stale("embed failure", ev.Gen, s.Gen)
		}
		s.Phase = PhaseUninitialized
		return s, []Effect{Log{Level: zapcore.ErrorLevel, Msg: "embed failed", Err: ev.Err}}

	case ViewPatched:
		if ev.Gen != s.Gen {
			return s, stale("patch", ev.Gen, s.Gen)
		}
		s.Phase = PhaseRendered
		if ev.Err != nil {
			return s, []Effect{Log{Level: zapcore.ErrorLevel, Msg: "patch failed", Err: ev.Err}}
		}
		return s, nil

	default:
		return s, logf(zapcore.WarnLevel, "unknown event %T", ev)
	}
}

func initialize(s State) (State, []Effect) {
	s.Gen++
	s.Phase = PhaseInitializing
	return s, []Effect{Fetch{URL: s.DataURL(), Gen: s.Gen, Purpose: PurposeInitialize}}
}

func stale(what string, got, current uint64) []Effect {
	return logf(zapcore.DebugLevel, "stale %s discarded (generation %d, current %d)", what, got, current)
}

func logf(level zapcore.Level, format string, args ...any) []Effect {
	return []Effect{Log{Level: level, Msg: fmt.Sprintf(format, args...)}}
}
