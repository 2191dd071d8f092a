package signal

// SMA returns the simple moving average of the trailing window of values.
// The caller guarantees len(values) >= window.
func SMA(values []float64, window int) float64 {
	sum := 0.0
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window)
}

// RSI computes the Relative Strength Index over the trailing period using
// Wilder smoothing: the first average gain/loss is a simple mean, every
// later one blends the previous average with the new delta at 1/period
// weight. Returns a value in [0, 100].
func RSI(values []float64, period int) float64 {
	if len(values) < period+1 {
		return 50
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
