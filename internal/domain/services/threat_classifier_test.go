package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"linkguard/internal/config"
	"linkguard/internal/domain/models"
)

func TestThreatClassifier_Rules(t *testing.T) {
	classifier := NewDefaultThreatClassifier()

	tests := []struct {
		name       string
		url        string
		wantThreat bool
		wantLevel  models.ThreatLevel
		wantReason string
	}{
		{"suspicious tld", "http://secure-bank.tk/login", true, models.ThreatLevelHigh, ReasonSuspiciousDomain},
		{"tld beats keyword and ip", "http://192.168.0.1/login.xyz", true, models.ThreatLevelHigh, ReasonSuspiciousDomain},
		{"keyword with raw ip", "http://192.168.1.10/verify", true, models.ThreatLevelHigh, ReasonKeywordRawIP},
		{"keyword only", "https://example.com/reset", true, models.ThreatLevelMedium, ReasonPhishingKeyword},
		{"keyword is case insensitive", "https://example.com/LOGIN", true, models.ThreatLevelMedium, ReasonPhishingKeyword},
		{"raw ip only", "http://10.0.0.5/home", true, models.ThreatLevelLow, ReasonRawIP},
		{"non standard port", "http://example.com:8080/home", true, models.ThreatLevelLow, ReasonNonStandardPort},
		{"percent encoding", "https://example.com/a%20b", true, models.ThreatLevelLow, ReasonObfuscated},
		{"redirect parameter", "https://example.com/out?goto=home", true, models.ThreatLevelLow, ReasonRedirectTrap},
		{"punycode domain", "https://xn--pple-43d.com/", true, models.ThreatLevelMedium, ReasonUnicodeDomain},
		{"hex ip", "http://0xC0A80001/", true, models.ThreatLevelMedium, ReasonHexIP},
		{"benign", "https://example.com/docs", false, models.ThreatLevelLow, ReasonSafe},
		{"garbage", "http://", false, models.ThreatLevelLow, ReasonSafe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.Classify(tt.url)
			assert.Equal(t, tt.wantThreat, got.IsThreat)
			assert.Equal(t, tt.wantLevel, got.Level)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestThreatClassifier_LongURL(t *testing.T) {
	classifier := NewDefaultThreatClassifier()

	base := "https://example.com/"
	longURL := base + strings.Repeat("a", 151-len(base))
	assert.Len(t, longURL, 151)

	got := classifier.Classify(longURL)
	assert.Equal(t, models.ClassificationResult{IsThreat: true, Level: models.ThreatLevelLow, Reason: ReasonLongURL}, got)

	atLimit := base + strings.Repeat("a", 150-len(base))
	assert.False(t, classifier.Classify(atLimit).IsThreat, "150 characters is still acceptable")
}

func TestThreatClassifier_DenylistedTLDAlwaysHigh(t *testing.T) {
	classifier := NewDefaultThreatClassifier()

	for _, tld := range config.DefaultClassifierConfig().SuspiciousTLDs {
		for _, url := range []string{
			"http://plain" + tld,
			"http://10.0.0.1/login/" + tld,
			"https://xn--e1a" + tld + ":8443/?redirect=x",
		} {
			got := classifier.Classify(url)
			assert.Equal(t, models.ThreatLevelHigh, got.Level, url)
			assert.Equal(t, ReasonSuspiciousDomain, got.Reason, url)
		}
	}
}

func TestThreatClassifier_CustomConfig(t *testing.T) {
	classifier := NewThreatClassifier(config.ClassifierConfig{
		Keywords:       []string{"Wallet"},
		SuspiciousTLDs: []string{".zip"},
		RedirectParams: []string{"next="},
		PortMinDigits:  4,
		PortMaxDigits:  4,
		MaxURLLength:   40,
	})

	assert.Equal(t, ReasonSuspiciousDomain, classifier.Classify("https://files.zip/a").Reason)
	assert.Equal(t, ReasonPhishingKeyword, classifier.Classify("https://example.com/wallet").Reason)
	assert.False(t, classifier.Classify("https://example.com/login").IsThreat, "default keywords are replaced")
	assert.False(t, classifier.Classify("https://example.com:80/").IsThreat, "two digit port below configured minimum")
	assert.Equal(t, ReasonNonStandardPort, classifier.Classify("https://example.com:8080/").Reason)
	assert.Equal(t, ReasonRedirectTrap, classifier.Classify("https://example.com/?next=/").Reason)
	assert.Equal(t, ReasonLongURL, classifier.Classify("https://example.com/"+strings.Repeat("b", 30)).Reason)
}

func TestThreatClassifier_InvalidNumericSettingsFallBack(t *testing.T) {
	classifier := NewThreatClassifier(config.ClassifierConfig{PortMinDigits: 5, PortMaxDigits: 2})

	assert.Equal(t, ReasonNonStandardPort, classifier.Classify("http://example.com:8080").Reason)
	assert.False(t, classifier.Classify("https://example.com/"+strings.Repeat("c", 100)).IsThreat)
}
