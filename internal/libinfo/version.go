/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package libinfo reports the version of go-crptapi the binary is built with.
package libinfo

import (
	"debug/buildinfo"
	"regexp"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const libShortName = "go-crptapi"

const moduleName = "github.com/acronis/" + libShortName

// PrometheusLibVersionLabel is the name of the constant label that all metrics of the module carry.
const PrometheusLibVersionLabel = "go_crptapi_version"

// PrometheusLibVersionLabels returns constant labels for Prometheus metrics of the module.
func PrometheusLibVersionLabels() prometheus.Labels {
	return prometheus.Labels{PrometheusLibVersionLabel: GetLibVersion()}
}

// UserAgent returns the default User-Agent of HTTP requests, e.g. "go-crptapi/v1.2.0".
func UserAgent() string {
	return libShortName + "/" + GetLibVersion()
}

var libVersion string
var libVersionOnce sync.Once

// GetLibVersion returns the version of the module, or "v0.0.0" if it cannot be determined.
func GetLibVersion() string {
	libVersionOnce.Do(initLibVersion)
	return libVersion
}

func initLibVersion() {
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		libVersion = extractLibVersion(buildInfo, moduleName)
	}
	if libVersion == "" {
		libVersion = "v0.0.0"
	}
}

// extractLibVersion looks for modName (or modName/vX) first as the main module (crptctl binary)
// and then among the dependencies.
func extractLibVersion(buildInfo *buildinfo.BuildInfo, modName string) string {
	if buildInfo == nil {
		return ""
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(modName) + `(/v[0-9]+)?$`)
	if re.MatchString(buildInfo.Main.Path) && buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
		return buildInfo.Main.Version
	}
	for _, dep := range buildInfo.Deps {
		if re.MatchString(dep.Path) {
			return dep.Version
		}
	}
	return ""
}
