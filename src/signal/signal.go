// Package signal turns a bar series into a directional trading decision
// from a 20/50 SMA crossover filtered by a 14-period RSI.
package signal

import (
	"errors"
	"fmt"
	"math"

	logger "github.com/sirupsen/logrus"

	"papertrader/src/model"
)

// ErrInsufficientData is returned when the series is shorter than the slow
// moving-average window.
var ErrInsufficientData = errors.New("insufficient bars for signal generation")

const (
	DefaultFastWindow = 20
	DefaultSlowWindow = 50
	DefaultRSIPeriod  = 14

	rsiOverbought = 70.0
	rsiOversold   = 30.0
)

// Generator computes signals over closing prices. The zero configuration
// uses the standard 20/50/14 windows.
type Generator struct {
	fastWindow int
	slowWindow int
	rsiPeriod  int
}

func NewGenerator() *Generator {
	return &Generator{
		fastWindow: DefaultFastWindow,
		slowWindow: DefaultSlowWindow,
		rsiPeriod:  DefaultRSIPeriod,
	}
}

func NewGeneratorWithWindows(fast, slow, rsiPeriod int) (*Generator, error) {
	if fast <= 0 || slow <= 0 || rsiPeriod <= 0 || fast >= slow {
		return nil, fmt.Errorf("invalid windows fast=%d slow=%d rsi=%d", fast, slow, rsiPeriod)
	}
	return &Generator{fastWindow: fast, slowWindow: slow, rsiPeriod: rsiPeriod}, nil
}

// SlowWindow reports the minimum series length Generate accepts.
func (g *Generator) SlowWindow() int {
	return g.slowWindow
}

// Generate evaluates the rule on the latest bar only:
//
//	BUY  iff sma_fast > sma_slow and rsi < 70
//	SELL iff sma_fast < sma_slow and rsi > 30
//	HOLD otherwise (ties included)
//
// The decision is a pure function of the input series.
func (g *Generator) Generate(bars []model.Bar) (*model.Signal, error) {
	if len(bars) < g.slowWindow {
		return nil, fmt.Errorf("%w: have %d bars, need %d", ErrInsufficientData, len(bars), g.slowWindow)
	}

	closes := model.Closes(bars)
	latest := bars[len(bars)-1]

	smaFast := SMA(closes, g.fastWindow)
	smaSlow := SMA(closes, g.slowWindow)
	rsi := RSI(closes, g.rsiPeriod)

	conditions := map[string]bool{
		"sma_fast_above_slow": smaFast > smaSlow,
		"sma_fast_below_slow": smaFast < smaSlow,
		"rsi_not_overbought":  rsi < rsiOverbought,
		"rsi_not_oversold":    rsi > rsiOversold,
	}

	direction := model.SignalHold
	switch {
	case conditions["sma_fast_above_slow"] && conditions["rsi_not_overbought"]:
		direction = model.SignalBuy
	case conditions["sma_fast_below_slow"] && conditions["rsi_not_oversold"]:
		direction = model.SignalSell
	}

	sig := &model.Signal{
		Symbol:    latest.Symbol,
		Timestamp: latest.Timestamp,
		Direction: direction,
		Price:     latest.Close,
		Indicators: model.Indicators{
			SMAFast: smaFast,
			SMASlow: smaSlow,
			RSI:     rsi,
		},
		Conditions: conditions,
	}
	sig.Strength = strength(sig)

	logger.WithFields(logger.Fields{
		"symbol":    sig.Symbol,
		"direction": sig.Direction,
		"sma_fast":  smaFast,
		"sma_slow":  smaSlow,
		"rsi":       rsi,
		"strength":  sig.Strength,
	}).Debug("signal generated")

	return sig, nil
}

// strength scores the conviction behind a signal in [0, 1]. Directional
// signals get stronger as the RSI moves toward its bound and as the SMA
// spread widens; holds get stronger near a neutral RSI.
func strength(sig *model.Signal) float64 {
	rsi := sig.Indicators.RSI

	var base float64
	switch sig.Direction {
	case model.SignalBuy:
		base = 0.5 + math.Max(0, (50-rsi)/20)*0.4
	case model.SignalSell:
		base = 0.5 + math.Max(0, (rsi-50)/20)*0.4
	default:
		base = 0.3 + (1-math.Abs(rsi-50)/50)*0.4
	}

	if sig.Direction != model.SignalHold && sig.Indicators.SMASlow != 0 {
		spread := math.Abs(sig.Indicators.SMAFast-sig.Indicators.SMASlow) / sig.Indicators.SMASlow
		base += math.Min(spread*10, 0.1)
	}

	return math.Round(math.Min(base, 1)*10000) / 10000
}
