package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/ijt/xylem/internal/ports"
	"github.com/ijt/xylem/internal/shared"
	"github.com/ijt/xylem/internal/types"
)

type detectorCommand struct {
	// argv is the listing command; names are appended when perName is set.
	argv    []string
	perName bool
	// tolerant tools exit non-zero when some name is not installed but
	// still list the ones that are.
	tolerant bool
	parse    func(output []byte) (map[string]string, error)
}

var detectorCommands = map[types.DetectorKind]detectorCommand{
	types.DetectorDpkg: {
		argv:     []string{"dpkg-query", "-W", "-f=${Package}\t${Status}\t${Version}\n"},
		perName:  true,
		tolerant: true,
		parse:    parseDpkgQuery,
	},
	types.DetectorRPM: {
		argv:     []string{"rpm", "-q", "--queryformat", "%{NAME}\t%{VERSION}-%{RELEASE}\n"},
		perName:  true,
		tolerant: true,
		parse:    parseTabbed,
	},
	types.DetectorPacman: {
		argv:     []string{"pacman", "-Q"},
		perName:  true,
		tolerant: true,
		parse:    parseNameVersion,
	},
	types.DetectorBrew: {
		argv:     []string{"brew", "list", "--versions"},
		perName:  true,
		tolerant: true,
		parse:    parseBrewVersions,
	},
	types.DetectorPort: {
		argv:     []string{"port", "installed"},
		perName:  true,
		tolerant: true,
		parse:    parsePortInstalled,
	},
	types.DetectorPip: {
		argv:  []string{"python3", "-m", "pip", "list", "--format=json"},
		parse: parsePipList,
	},
	types.DetectorGem: {
		argv:  []string{"gem", "list", "--local"},
		parse: parseGemList,
	},
	types.DetectorPortage: {
		argv:  []string{"qlist", "-ICv"},
		parse: parseQlist,
	},
	types.DetectorCygcheck: {
		argv:     []string{"cygcheck", "-c", "-d"},
		perName:  true,
		tolerant: true,
		parse:    parseCygcheck,
	},
}

// CommandDetectorAdapter asks a package manager which packages are
// installed by running its listing command.
type CommandDetectorAdapter struct {
	Kind   types.DetectorKind
	Runner ports.CommandRunnerPort
}

func NewCommandDetectorAdapter(kind types.DetectorKind, runner ports.CommandRunnerPort) (CommandDetectorAdapter, error) {
	if _, ok := detectorCommands[kind]; !ok {
		return CommandDetectorAdapter{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported detector: %s", kind))
	}
	return CommandDetectorAdapter{Kind: kind, Runner: runner}, nil
}

// NewDetectorFactory returns a constructor for detectors sharing runner.
func NewDetectorFactory(runner ports.CommandRunnerPort) func(types.DetectorKind) (ports.PackageDetectorPort, error) {
	return func(kind types.DetectorKind) (ports.PackageDetectorPort, error) {
		detector, err := NewCommandDetectorAdapter(kind, runner)
		if err != nil {
			return nil, err
		}
		return detector, nil
	}
}

func (a CommandDetectorAdapter) Installed(ctx context.Context, names []string) (map[string]string, error) {
	installed := map[string]string{}
	if len(names) == 0 {
		return installed, nil
	}
	command, ok := detectorCommands[a.Kind]
	if !ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported detector: %s", a.Kind))
	}
	argv := append([]string(nil), command.argv...)
	if command.perName {
		argv = append(argv, names...)
	}
	output, err := a.Runner.Output(ctx, argv)
	if err != nil {
		if !command.tolerant || ctx.Err() != nil {
			return nil, err
		}
		log.Debug().Err(err).Str("detector", string(a.Kind)).Msg("listing command reported missing packages")
	}
	listed, err := command.parse(output)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if version, ok := listed[name]; ok {
			installed[name] = version
		}
	}
	return installed, nil
}

func parseDpkgQuery(output []byte) (map[string]string, error) {
	out := map[string]string{}
	for _, line := range strings.Split(string(output), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) != 3 {
			continue
		}
		if !strings.HasSuffix(strings.TrimSpace(parts[1]), " installed") {
			continue
		}
		out[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[2])
	}
	return out, nil
}

func parseTabbed(output []byte) (map[string]string, error) {
	out := map[string]string{}
	for _, line := range strings.Split(string(output), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) != 2 {
			continue
		}
		out[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return out, nil
}

func parseNameVersion(output []byte) (map[string]string, error) {
	out := map[string]string{}
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		out[fields[0]] = fields[1]
	}
	return out, nil
}

// parseBrewVersions keeps the newest listed version, which brew prints
// last.
func parseBrewVersions(output []byte) (map[string]string, error) {
	out := map[string]string{}
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		out[fields[0]] = fields[len(fields)-1]
	}
	return out, nil
}

// parsePortInstalled reads "  name @1.2.3_0 (active)" lines and keeps
// active ports only.
func parsePortInstalled(output []byte) (map[string]string, error) {
	out := map[string]string{}
	for _, line := range strings.Split(string(output), "\n") {
		if !strings.HasPrefix(line, " ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[2] != "(active)" {
			continue
		}
		out[fields[0]] = strings.TrimPrefix(fields[1], "@")
	}
	return out, nil
}

type pipListEntry struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func parsePipList(output []byte) (map[string]string, error) {
	var entries []pipListEntry
	if err := json.Unmarshal(output, &entries); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("pip list output is invalid").
			WithCause(err)
	}
	versions := map[string]string{}
	for _, entry := range entries {
		name := shared.NormalizePipName(entry.Name)
		if name == "" {
			continue
		}
		versions[name] = strings.TrimSpace(entry.Version)
	}
	return versions, nil
}

// parseGemList reads "name (1.2.3, 1.0.0)" lines, keeping the first
// (newest) version.
func parseGemList(output []byte) (map[string]string, error) {
	out := map[string]string{}
	for _, line := range strings.Split(string(output), "\n") {
		open := strings.Index(line, " (")
		if open <= 0 || !strings.HasSuffix(line, ")") {
			continue
		}
		versions := strings.Split(line[open+2:len(line)-1], ",")
		version := strings.TrimPrefix(strings.TrimSpace(versions[0]), "default: ")
		out[line[:open]] = version
	}
	return out, nil
}

// parseQlist splits "category/name-1.2.3-r1" atoms at the first dash
// followed by a digit after the category.
func parseQlist(output []byte) (map[string]string, error) {
	out := map[string]string{}
	for _, line := range strings.Split(string(output), "\n") {
		atom := strings.TrimSpace(line)
		if atom == "" {
			continue
		}
		slash := strings.LastIndex(atom, "/")
		split := -1
		for idx := slash + 1; idx < len(atom)-1; idx++ {
			if atom[idx] == '-' && unicode.IsDigit(rune(atom[idx+1])) {
				split = idx
				break
			}
		}
		if split < 0 {
			out[atom] = ""
			continue
		}
		out[atom[:split]] = atom[split+1:]
	}
	return out, nil
}

func parseCygcheck(output []byte) (map[string]string, error) {
	out := map[string]string{}
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 || fields[0] == "Package" || fields[0] == "Cygwin" {
			continue
		}
		out[fields[0]] = fields[1]
	}
	return out, nil
}

var _ ports.PackageDetectorPort = CommandDetectorAdapter{}
