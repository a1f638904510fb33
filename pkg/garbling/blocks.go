package garbling

// blockBatches gives, for each supported block-garbling rate, a mini-batch
// of shocks whose share of trues exactly equals the rate. A block's shock
// pool is refilled with a freshly shuffled copy of the relevant batch
// whenever it runs dry, so the realized garbling rate is exact for every
// full batch consumed regardless of how many respondents interleave
// (§4.5, §8 "block exactness").
var blockBatches = map[float64][]bool{
	0.2:  {true, false, false, false, false},
	0.25: {true, false, false, false},
	0.4:  {true, true, false, false, false},
	0.5:  {true, false},
	0.6:  {true, true, true, false, false},
	0.75: {true, true, true, false},
	0.8:  {true, true, true, true, false},
}

// AllowedBlockRates is the fixed set of rates block-garbling schemes may be
// configured with (§3).
var AllowedBlockRates = map[float64]bool{
	0.2:  true,
	0.25: true,
	0.4:  true,
	0.5:  true,
	0.6:  true,
	0.75: true,
	0.8:  true,
}

func batchFor(rate float64) []bool {
	src := blockBatches[rate]
	out := make([]bool, len(src))
	copy(out, src)
	return out
}
