package validate

// Config tunes the validator set's firing thresholds (§4.6). Zero-value
// fields fall back to DefaultConfig's values via NewConfig.
type Config struct {
	CompletenessWarnThreshold  float64 // null_fraction above this -> Warning
	CompletenessErrorThreshold float64 // null_fraction above this -> Error
	TypeErrorFraction          float64 // mismatch fraction above this -> Error instead of Warning
	RangeErrorSpanMultiplier   float64 // beyond this multiple of expected span -> Error
	Strict                     bool    // SetMembership: non-variant cell -> Error instead of Warning
	OutlierWarnFraction        float64 // outlier fraction above this -> Warning instead of Info
	TypoMaxEditDistance        int
	NullTokensExtra            []string
}

// DefaultConfig returns the spec's documented validator thresholds (§4.6).
func DefaultConfig() Config {
	return Config{
		CompletenessWarnThreshold:  0.3,
		CompletenessErrorThreshold: 0.9,
		TypeErrorFraction:          0.10,
		RangeErrorSpanMultiplier:   3,
		Strict:                     false,
		OutlierWarnFraction:        0.01,
		TypoMaxEditDistance:        1,
	}
}
