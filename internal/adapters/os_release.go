package adapters

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/ijt/xylem/internal/ports"
)

const defaultOSReleasePath = "/etc/os-release"

// osIDAliases maps os-release IDs onto the OS names used in rule files.
var osIDAliases = map[string]string{
	"linuxmint":           "mint",
	"opensuse-leap":       "opensuse",
	"opensuse-tumbleweed": "opensuse",
	"archarm":             "arch",
	"manjaro":             "arch",
}

var macOSCodenames = map[string]string{
	"10.13": "high_sierra",
	"10.14": "mojave",
	"10.15": "catalina",
	"11":    "big_sur",
	"12":    "monterey",
	"13":    "ventura",
	"14":    "sonoma",
	"15":    "sequoia",
}

type osInfo struct {
	name     string
	version  string
	codename string
}

// OSReleaseAdapter detects the running OS from os-release on Linux and
// from sw_vers on macOS.  The result is read once.
type OSReleaseAdapter struct {
	Path   string
	GOOS   string
	Runner ports.CommandRunnerPort
	info   *osInfo
}

func NewOSReleaseAdapter(runner ports.CommandRunnerPort) *OSReleaseAdapter {
	return &OSReleaseAdapter{Path: defaultOSReleasePath, GOOS: runtime.GOOS, Runner: runner}
}

func (a *OSReleaseAdapter) Name(ctx context.Context) (string, error) {
	info, err := a.detect(ctx)
	if err != nil {
		return "", err
	}
	return info.name, nil
}

func (a *OSReleaseAdapter) Version(ctx context.Context) (string, error) {
	info, err := a.detect(ctx)
	if err != nil {
		return "", err
	}
	return info.version, nil
}

func (a *OSReleaseAdapter) Codename(ctx context.Context) (string, error) {
	info, err := a.detect(ctx)
	if err != nil {
		return "", err
	}
	if info.codename == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("OS %s %s has no codename", info.name, info.version))
	}
	return info.codename, nil
}

func (a *OSReleaseAdapter) detect(ctx context.Context) (osInfo, error) {
	if a.info != nil {
		return *a.info, nil
	}
	var (
		info osInfo
		err  error
	)
	switch a.GOOS {
	case "darwin":
		info, err = a.detectMacOS(ctx)
	case "linux":
		info, err = a.detectOSRelease()
	default:
		err = errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("cannot detect OS on %s, use --os NAME:VERSION", a.GOOS))
	}
	if err != nil {
		return osInfo{}, err
	}
	log.Debug().Str("os", info.name).Str("version", info.version).Str("codename", info.codename).Msg("detected OS")
	a.info = &info
	return info, nil
}

func (a *OSReleaseAdapter) detectOSRelease() (osInfo, error) {
	path := a.Path
	if path == "" {
		path = defaultOSReleasePath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return osInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("os-release not found: %s", path)).
			WithCause(err)
	}
	return parseOSRelease(data)
}

// parseOSRelease reads ID, VERSION_ID and VERSION_CODENAME from an
// os-release document.
func parseOSRelease(data []byte) (osInfo, error) {
	v := viper.New()
	v.SetConfigType("env")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return osInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse os-release").
			WithCause(err)
	}
	id := strings.ToLower(strings.TrimSpace(v.GetString("id")))
	if id == "" {
		return osInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("os-release has no ID")
	}
	if alias, ok := osIDAliases[id]; ok {
		id = alias
	}
	codename := strings.TrimSpace(v.GetString("version_codename"))
	if codename == "" {
		codename = strings.TrimSpace(v.GetString("ubuntu_codename"))
	}
	return osInfo{
		name:     id,
		version:  strings.TrimSpace(v.GetString("version_id")),
		codename: codename,
	}, nil
}

func (a *OSReleaseAdapter) detectMacOS(ctx context.Context) (osInfo, error) {
	if a.Runner == nil {
		return osInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("no command runner to query sw_vers")
	}
	output, err := a.Runner.Output(ctx, []string{"sw_vers", "-productVersion"})
	if err != nil {
		return osInfo{}, err
	}
	return macOSInfo(strings.TrimSpace(string(output))), nil
}

// macOSInfo keeps major.minor for 10.x releases and the major number
// afterwards, matching how releases are named.
func macOSInfo(productVersion string) osInfo {
	parts := strings.Split(productVersion, ".")
	version := parts[0]
	if parts[0] == "10" && len(parts) > 1 {
		version = parts[0] + "." + parts[1]
	}
	return osInfo{name: "osx", version: version, codename: macOSCodenames[version]}
}

var _ ports.OSDetectorPort = (*OSReleaseAdapter)(nil)
