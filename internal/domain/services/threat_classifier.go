package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"linkguard/internal/config"
	"linkguard/internal/domain/models"
)

// Classification reasons
const (
	ReasonSuspiciousDomain = "suspicious domain"
	ReasonKeywordRawIP     = "keyword + raw IP"
	ReasonPhishingKeyword  = "phishing keyword"
	ReasonRawIP            = "raw IP instead of domain"
	ReasonNonStandardPort  = "non-standard port"
	ReasonObfuscated       = "obfuscated characters"
	ReasonRedirectTrap     = "redirect trap"
	ReasonUnicodeDomain    = "unicode/spoofed domain"
	ReasonHexIP            = "hex-encoded IP"
	ReasonLongURL          = "unusually long URL"
	ReasonSafe             = "safe"
)

var (
	rawIPPattern    = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	encodedPattern  = regexp.MustCompile(`%[0-9a-f]{2}`)
	punycodePattern = regexp.MustCompile(`xn--[a-z0-9\-]+`)
	hexIPPattern    = regexp.MustCompile(`0x[0-9a-f]+`)
)

// classifierRule is one entry of the ordered rule list. match receives the
// original URL and its lower-cased form.
type classifierRule struct {
	level  models.ThreatLevel
	reason string
	match  func(raw, lower string) bool
}

// ThreatClassifier scores URLs against an ordered list of phishing heuristics.
// The first matching rule decides the verdict. It is safe for concurrent use.
type ThreatClassifier struct {
	rules []classifierRule
}

// NewThreatClassifier builds a classifier from the tunable rule inputs.
// Out-of-range numeric settings fall back to the defaults.
func NewThreatClassifier(cfg config.ClassifierConfig) *ThreatClassifier {
	defaults := config.DefaultClassifierConfig()

	minDigits, maxDigits := cfg.PortMinDigits, cfg.PortMaxDigits
	if minDigits <= 0 || maxDigits < minDigits {
		minDigits, maxDigits = defaults.PortMinDigits, defaults.PortMaxDigits
	}
	maxLength := cfg.MaxURLLength
	if maxLength <= 0 {
		maxLength = defaults.MaxURLLength
	}

	keywords := lowerAll(cfg.Keywords)
	tlds := lowerAll(cfg.SuspiciousTLDs)
	redirects := lowerAll(cfg.RedirectParams)
	portPattern := regexp.MustCompile(fmt.Sprintf(`:[0-9]{%d,%d}`, minDigits, maxDigits))

	hasKeyword := func(_, lower string) bool { return containsAny(lower, keywords) }
	hasRawIP := func(_, lower string) bool { return rawIPPattern.MatchString(lower) }

	return &ThreatClassifier{
		rules: []classifierRule{
			{models.ThreatLevelHigh, ReasonSuspiciousDomain, func(_, lower string) bool {
				return containsAny(lower, tlds)
			}},
			{models.ThreatLevelHigh, ReasonKeywordRawIP, func(raw, lower string) bool {
				return hasKeyword(raw, lower) && hasRawIP(raw, lower)
			}},
			{models.ThreatLevelMedium, ReasonPhishingKeyword, hasKeyword},
			{models.ThreatLevelLow, ReasonRawIP, hasRawIP},
			{models.ThreatLevelLow, ReasonNonStandardPort, func(_, lower string) bool {
				return portPattern.MatchString(lower)
			}},
			{models.ThreatLevelLow, ReasonObfuscated, func(_, lower string) bool {
				return encodedPattern.MatchString(lower)
			}},
			{models.ThreatLevelLow, ReasonRedirectTrap, func(_, lower string) bool {
				return containsAny(lower, redirects)
			}},
			{models.ThreatLevelMedium, ReasonUnicodeDomain, func(_, lower string) bool {
				return punycodePattern.MatchString(lower)
			}},
			{models.ThreatLevelMedium, ReasonHexIP, func(_, lower string) bool {
				return hexIPPattern.MatchString(lower)
			}},
			{models.ThreatLevelLow, ReasonLongURL, func(raw, _ string) bool {
				return utf8.RuneCountInString(raw) > maxLength
			}},
		},
	}
}

// NewDefaultThreatClassifier builds a classifier with the stock rule inputs
func NewDefaultThreatClassifier() *ThreatClassifier {
	return NewThreatClassifier(config.DefaultClassifierConfig())
}

// Classify returns the verdict of the first matching rule, or a safe result.
// It never fails; malformed input is simply safe.
func (c *ThreatClassifier) Classify(url string) models.ClassificationResult {
	lower := strings.ToLower(url)

	for _, rule := range c.rules {
		if rule.match(url, lower) {
			return models.ClassificationResult{
				IsThreat: true,
				Level:    rule.level,
				Reason:   rule.reason,
			}
		}
	}

	return models.ClassificationResult{
		IsThreat: false,
		Level:    models.ThreatLevelLow,
		Reason:   ReasonSafe,
	}
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if needle != "" && strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
