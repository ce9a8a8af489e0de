package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Git-Robbed/smells-phishy/internal/domain/models"
	"github.com/Git-Robbed/smells-phishy/pkg/logger"
)

func TestExtract_SchemeURL(t *testing.T) {
	e := NewExtractor(10, logger.NewDefault())

	urls := e.Extract("Please verify at https://example.com/login now")

	require.Len(t, urls, 1)
	assert.Equal(t, "https://example.com/login", urls[0].Normalized)
	assert.Equal(t, "example.com", urls[0].Host)
	assert.Equal(t, "com", urls[0].TLD)
}

func TestExtract_WWWPrefixed(t *testing.T) {
	e := NewExtractor(10, logger.NewDefault())

	urls := e.Extract("visit www.example.org/path for details")

	require.Len(t, urls, 1)
	assert.Equal(t, "https://www.example.org/path", urls[0].Normalized)
	assert.Equal(t, "www.example.org", urls[0].Host)
}

func TestExtract_TrimsTrailingPunctuation(t *testing.T) {
	e := NewExtractor(10, logger.NewDefault())

	urls := e.Extract("go to https://example.com/login.")

	require.Len(t, urls, 1)
	assert.Equal(t, "https://example.com/login", urls[0].Normalized)
}

func TestExtract_Deduplicates(t *testing.T) {
	e := NewExtractor(10, logger.NewDefault())

	urls := e.Extract("https://example.com/a and again https://example.com/a")

	assert.Len(t, urls, 1)
}

func TestExtract_CapsAtMaxURLs(t *testing.T) {
	e := NewExtractor(2, logger.NewDefault())

	urls := e.Extract("https://a.example.com https://b.example.com https://c.example.com")

	assert.Len(t, urls, 2)
}

func TestExtract_NoURLs(t *testing.T) {
	e := NewExtractor(10, logger.NewDefault())

	urls := e.Extract("Lunch at noon tomorrow?")

	assert.Empty(t, urls)
}

func TestAnalyze_IPHost(t *testing.T) {
	e := NewExtractor(10, logger.NewDefault())

	info := e.analyze("http://192.168.12.34/login")

	assert.True(t, info.IsIP)
	assert.Contains(t, info.Flags, "ip_address_host")
}

func TestAnalyze_UserInfo(t *testing.T) {
	e := NewExtractor(10, logger.NewDefault())

	info := e.analyze("https://paypal.com@evil.example.com/login")

	assert.True(t, info.HasUserInfo)
	assert.Equal(t, "evil.example.com", info.Host)
	assert.Contains(t, info.Flags, "userinfo_in_url")
}

func TestAnalyze_Shortener(t *testing.T) {
	e := NewExtractor(10, logger.NewDefault())

	info := e.analyze("https://bit.ly/3xYz")

	assert.True(t, info.IsShortened)
}

func TestAnalyze_Punycode(t *testing.T) {
	e := NewExtractor(10, logger.NewDefault())

	info := e.analyze("https://xn--pypal-4ve.com/signin")

	assert.True(t, info.IsPunycode)
}

func TestAnalyze_SuspiciousTLD(t *testing.T) {
	e := NewExtractor(10, logger.NewDefault())

	info := e.analyze("https://login-secure.tk/verify")

	assert.True(t, info.SuspiciousTLD)
}

func TestAnalyze_DeepSubdomain(t *testing.T) {
	e := NewExtractor(10, logger.NewDefault())

	info := e.analyze("https://secure.login.account.example.com")

	assert.Equal(t, 3, info.SubdomainDepth)
	assert.Contains(t, info.Flags, "deep_subdomain")
}

func TestStructuralScore(t *testing.T) {
	assert.Equal(t, 0, StructuralScore(models.URLInfo{}))
	assert.Equal(t, 35, StructuralScore(models.URLInfo{IsIP: true}))
	assert.Equal(t, 70, StructuralScore(models.URLInfo{IsIP: true, HasUserInfo: true}))
	assert.Equal(t, 100, StructuralScore(models.URLInfo{
		IsIP:           true,
		HasUserInfo:    true,
		IsPunycode:     true,
		SuspiciousTLD:  true,
		IsShortened:    true,
		SubdomainDepth: 4,
	}))
}
