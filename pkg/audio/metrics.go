package audio

import "math"

// meanSquare returns the average signal power across both channels.
func meanSquare(samples [][2]float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s[0]*s[0] + s[1]*s[1]
	}
	return sum / float64(len(samples)*2)
}

// measureLUFS estimates integrated loudness. This is the BS.1770
// formula without K-weighting, which is close enough for speech-only
// material.
func measureLUFS(samples [][2]float64) float64 {
	ms := meanSquare(samples)
	if ms <= 0 {
		return math.Inf(-1)
	}
	return -0.691 + 10*math.Log10(ms)
}

// noiseFloorRMS returns the RMS of the quietest analysis window,
// treated as the noise floor estimate.
func noiseFloorRMS(samples [][2]float64, window int) float64 {
	if window <= 0 || len(samples) < window {
		return 0
	}
	floor := math.Inf(1)
	for start := 0; start+window <= len(samples); start += window {
		rms := math.Sqrt(meanSquare(samples[start : start+window]))
		if rms < floor {
			floor = rms
		}
	}
	if math.IsInf(floor, 1) {
		return 0
	}
	return floor
}

// measureSNR estimates the signal-to-noise ratio in decibels from the
// overall power and the noise floor.
func measureSNR(samples [][2]float64, window int) float64 {
	signal := meanSquare(samples)
	floor := noiseFloorRMS(samples, window)
	noise := floor * floor
	if noise <= 0 {
		// Digitally silent floor; report a generous but finite figure
		return 96
	}
	if signal <= 0 {
		return 0
	}
	snr := 10 * math.Log10(signal/noise)
	if snr < 0 {
		return 0
	}
	return snr
}

// measureTHD approximates harmonic distortion as the fraction of
// samples pinned at or above the clip level.
func measureTHD(samples [][2]float64, clipLevel float64) float64 {
	if len(samples) == 0 || clipLevel <= 0 {
		return 0
	}
	clipped := 0
	for _, s := range samples {
		if math.Abs(s[0]) >= clipLevel || math.Abs(s[1]) >= clipLevel {
			clipped++
		}
	}
	return float64(clipped) / float64(len(samples))
}

// mosProxy maps SNR and distortion to a 1..5 mean-opinion-score
// stand-in. 35dB SNR with no clipping scores a full 5.
func mosProxy(snrDB, thd float64) float64 {
	snrScore := (snrDB - 5) / 30
	if snrScore < 0 {
		snrScore = 0
	}
	if snrScore > 1 {
		snrScore = 1
	}
	mos := 1 + 4*snrScore - 8*thd
	if mos < 1 {
		mos = 1
	}
	if mos > 5 {
		mos = 5
	}
	return mos
}
