package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionStrings(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Revision)

	assert.Contains(t, Short(), Version)
	assert.Contains(t, Short(), Revision)

	detailed := Detailed()
	assert.Contains(t, detailed, Version)
	assert.Contains(t, detailed, "/")
	assert.True(t, strings.HasPrefix(DetailedWithApp(), AppName+" "))

	info := Get()
	assert.Equal(t, AppName, info.App)
	assert.Equal(t, Version, info.Version)
}

func restore(t *testing.T) {
	origVersion, origRevision, origBuildDate := Version, Revision, BuildDate
	t.Cleanup(func() {
		Version, Revision, BuildDate = origVersion, origRevision, origBuildDate
	})
}

func TestApplyBuildInfo(t *testing.T) {
	tests := []struct {
		name                           string
		version, revision, buildDate   string
		mainVersion                    string
		settings                       map[string]string
		wantVersion, wantRev, wantDate string
	}{
		{
			name:    "fills defaults",
			version: devVersion, revision: "HEAD",
			mainVersion: "v9.9.9",
			settings: map[string]string{
				"vcs.revision": "abcdef1234567890",
				"vcs.modified": "true",
				"vcs.time":     "2025-12-12T01:00:00Z",
			},
			wantVersion: "9.9.9", wantRev: "abcdef1234567890-dirty", wantDate: "2025-12-12T01:00:00Z",
		},
		{
			name:    "ldflags win",
			version: "1.2.3", revision: "deadbeef", buildDate: "from-ldflags",
			mainVersion: "v9.9.9",
			settings:    map[string]string{"vcs.revision": "abcdef", "vcs.time": "2025-12-12T01:00:00Z"},
			wantVersion: "1.2.3", wantRev: "deadbeef", wantDate: "from-ldflags",
		},
		{
			name:    "devel build",
			version: devVersion, revision: "HEAD",
			mainVersion: "(devel)",
			settings:    map[string]string{},
			wantVersion: devVersion, wantRev: "HEAD", wantDate: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restore(t)
			Version, Revision, BuildDate = tt.version, tt.revision, tt.buildDate

			applyBuildInfo(tt.mainVersion, tt.settings)

			assert.Equal(t, tt.wantVersion, Version)
			assert.Equal(t, tt.wantRev, Revision)
			assert.Equal(t, tt.wantDate, BuildDate)
		})
	}
}
