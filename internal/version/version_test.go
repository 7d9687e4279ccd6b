package version

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"dev", Info{Version: "dev", GitCommit: "unknown"}, "kiln dev"},
		{"commit", Info{Version: "v1.2.0", GitCommit: "0123456789abcdef"}, "kiln v1.2.0 (0123456)"},
		{"dirty", Info{Version: "v1.2.0", GitCommit: "0123456789abcdef", Dirty: true}, "kiln v1.2.0 (0123456, dirty)"},
		{"short commit", Info{Version: "v1.2.0", GitCommit: "abc"}, "kiln v1.2.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.Short())
		})
	}
}

func TestIsRelease(t *testing.T) {
	assert.True(t, Info{Version: "v1.0.0"}.IsRelease())
	assert.False(t, Info{Version: "dev"}.IsRelease())
	assert.False(t, Info{Version: "v1.2.4-0.20250101000000-abcdef123456"}.IsRelease())
}

func TestGetUsesLinkerValues(t *testing.T) {
	defer func(v, c, b string) { Version, GitCommit, BuildTime = v, c, b }(Version, GitCommit, BuildTime)
	Version, GitCommit, BuildTime = "v2.0.0", "fedcba9876543210", "2025-03-01T12:00:00Z"

	info := Get()
	assert.Equal(t, "v2.0.0", info.Version)
	assert.Equal(t, "fedcba9876543210", info.GitCommit)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), info.BuildTime.UTC())
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}
