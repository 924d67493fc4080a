package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mediavault/tubefetch/internal/models"
)

func TestParseAdminIDs(t *testing.T) {
	ids := parseAdminIDs("123, 456,,abc, 789")
	assert.Equal(t, map[int64]bool{123: true, 456: true, 789: true}, ids)

	assert.Empty(t, parseAdminIDs(""))
}

func TestIsAdmin(t *testing.T) {
	cfg := Config{AdminUserIDs: map[int64]bool{42: true}}
	assert.True(t, cfg.IsAdmin(42))
	assert.False(t, cfg.IsAdmin(7))
}

func TestPackageByID(t *testing.T) {
	cfg := Config{Packages: []models.TokenPackage{
		{ID: "1", Tokens: 1, PriceMinorUnits: 5000},
		{ID: "5", Tokens: 5, PriceMinorUnits: 20000},
	}}

	pkg := cfg.PackageByID("5")
	if assert.NotNil(t, pkg) {
		assert.Equal(t, 5, pkg.Tokens)
	}
	assert.Nil(t, cfg.PackageByID("999"))
}

func TestNormalizeChannelUsername(t *testing.T) {
	tests := []struct{ in, want string }{
		{"@mychannel", "mychannel"},
		{"https://t.me/mychannel", "mychannel"},
		{"t.me/mychannel/", "mychannel"},
		{"  mychannel  ", "mychannel"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeChannelUsername(tt.in), tt.in)
	}
}
