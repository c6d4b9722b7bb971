package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const devVersion = "0.1.0-dev"

// Set through -ldflags "-X github.com/wisnuc/appifi/internal/version.Version=..."
var (
	AppName   = "appifi"
	Version   = devVersion
	Revision  = "HEAD"
	BuildDate = ""
)

// Info is the build metadata served by the health endpoint.
type Info struct {
	App       string `json:"app"`
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	BuildDate string `json:"buildDate"`
	Go        string `json:"go"`
	Platform  string `json:"platform"`
}

func Get() Info {
	return Info{
		App:       AppName,
		Version:   Version,
		Revision:  Revision,
		BuildDate: BuildDate,
		Go:        runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// applyBuildInfo fills in whatever ldflags left at its default.
func applyBuildInfo(mainVersion string, settings map[string]string) {
	if Version == devVersion || Version == "" {
		if mainVersion != "" && mainVersion != "(devel)" {
			Version = strings.TrimPrefix(mainVersion, "v")
		}
	}

	if Revision == "HEAD" || Revision == "" {
		if r := settings["vcs.revision"]; r != "" {
			if settings["vcs.modified"] == "true" {
				r += "-dirty"
			}
			Revision = r
		}
	}

	if BuildDate == "" {
		BuildDate = settings["vcs.time"]
	}
}

// Short returns `0.1.0 (5e23a4)`
func Short() string {
	return fmt.Sprintf("%s (%s)", Version, Revision)
}

// Detailed returns `0.1.0 (5e23a4; go1.23.6; linux/arm64; <build date>)`
func Detailed() string {
	i := Get()
	return fmt.Sprintf("%s (%s; %s; %s; %s)", i.Version, i.Revision, i.Go, i.Platform, i.BuildDate)
}

func DetailedWithApp() string {
	return fmt.Sprintf("%s %s", AppName, Detailed())
}

func init() {
	if info, ok := debug.ReadBuildInfo(); ok && info != nil {
		settings := make(map[string]string, len(info.Settings))
		for _, s := range info.Settings {
			settings[s.Key] = s.Value
		}
		applyBuildInfo(info.Main.Version, settings)
	}
	if BuildDate == "" {
		BuildDate = time.Now().UTC().Format(time.RFC3339)
	}
}
