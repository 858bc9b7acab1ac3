package llm

import (
	"fmt"
	"net/url"
	"time"
)

// Valid ranges for common request parameters, shared across providers.
const (
	// MinTemperature is the minimum allowed temperature.
	MinTemperature = 0.0
	// MaxTemperature accommodates providers like Gemini that accept up
	// to 2.0.
	MaxTemperature = 2.0
	// MinTopP is the minimum allowed Top-P value.
	MinTopP = 0.0
	// MaxTopP is the maximum allowed Top-P value.
	MaxTopP = 1.0
	// MinPenalty is the minimum frequency/presence penalty.
	MinPenalty = -2.0
	// MaxPenalty is the maximum frequency/presence penalty.
	MaxPenalty = 2.0
	// MinTimeout is the smallest accepted request timeout.
	MinTimeout = 1 * time.Second
	// MaxTimeout is the largest accepted request timeout.
	MaxTimeout = 10 * time.Minute
)

// IsValidTemperature checks if the temperature is within [0.0, 2.0].
func IsValidTemperature(val float64) bool {
	return val >= MinTemperature && val <= MaxTemperature
}

// IsValidTopP checks if the top_p value is within [0.0, 1.0].
func IsValidTopP(val float64) bool {
	return val >= MinTopP && val <= MaxTopP
}

// IsPositiveInt checks if the integer value is positive.
func IsPositiveInt(val int) bool { return val > 0 }

// IsNonEmptyString checks if the string is non-empty.
func IsNonEmptyString(val string) bool { return val != "" }

// ValidateBaseURL validates and normalizes a base URL. Empty is valid and
// signifies the provider default.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, got: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}
	return parsed.String(), nil
}

// ValidateTimeout clamps a timeout into [MinTimeout, MaxTimeout]. Zero or
// negative returns zero, meaning the system default applies.
func ValidateTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	if timeout < MinTimeout {
		return MinTimeout
	}
	if timeout > MaxTimeout {
		return MaxTimeout
	}
	return timeout
}

// SafeFloat32 converts a numeric any value to float32, reporting whether
// the conversion is exact enough to use.
func SafeFloat32(value any) (float32, bool) {
	switch v := value.(type) {
	case float32:
		return v, true
	case float64:
		if v > 3.4e38 || v < -3.4e38 {
			return 0, false
		}
		return float32(v), true
	case int:
		return float32(v), true
	default:
		return 0, false
	}
}

// ClampFloat64 clamps val into [min, max].
func ClampFloat64(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// ClampInt clamps val into [min, max].
func ClampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
