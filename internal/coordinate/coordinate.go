// Package coordinate parses and formats Maven-style GAV+ artifact
// coordinates and computes the UINFO key that identifies an artifact
// record across its lifetime.
package coordinate

import (
	"errors"
	"regexp"
	"strings"
)

// fieldSeparator joins coordinate components in the UINFO string.
const fieldSeparator = "|"

// naMarker is the token used in place of an absent classifier.
const naMarker = "NA"

var ErrNotAnArtifactPath = errors.New("path does not match g/a/v/a-v[-c].e layout")

// Coordinate is the (groupId, artifactId, version, classifier?, extension) tuple
// that identifies an artifact. Extension defaults from packaging at the call
// site, never silently at parse time.
type Coordinate struct {
	GroupID    string
	ArtifactID string
	Version    string
	Classifier string // empty means absent
	Extension  string
}

// snapshotSuffix matches "-SNAPSHOT" or a timestamped snapshot build suffix
// such as "-20240115.103045-3".
var snapshotSuffix = regexp.MustCompile(`-(SNAPSHOT|\d{8}\.\d{6}-\d+)$`)

// BaseVersion strips any snapshot qualifier to "<base>-SNAPSHOT", treating
// the literal "SNAPSHOT" and a timestamped build identically for grouping.
// It leaves release versions untouched.
func BaseVersion(version string) string {
	loc := snapshotSuffix.FindStringIndex(version)
	if loc == nil {
		return version
	}
	return version[:loc[0]] + "-SNAPSHOT"
}

// UINFO returns the canonical, case-sensitive unique key for the coordinate:
// the field-separator-joined string g|a|v|c|e, with NA for an absent classifier.
func UINFO(c Coordinate) string {
	classifier := c.Classifier
	if classifier == "" {
		classifier = naMarker
	}
	return strings.Join([]string{c.GroupID, c.ArtifactID, c.Version, classifier, c.Extension}, fieldSeparator)
}

// ParseUINFO is the inverse of UINFO, used when reading a record back.
func ParseUINFO(uinfo string) (Coordinate, error) {
	parts := strings.Split(uinfo, fieldSeparator)
	if len(parts) != 5 {
		return Coordinate{}, errors.New("malformed UINFO: want 5 fields")
	}
	c := Coordinate{
		GroupID:    parts[0],
		ArtifactID: parts[1],
		Version:    parts[2],
		Classifier: parts[3],
		Extension:  parts[4],
	}
	if c.Classifier == naMarker {
		c.Classifier = ""
	}
	return c, nil
}

// ParseFromPath recognizes the repository layout
// g1/g2/.../a/v/a-v[-c].e[.ext2] and returns the coordinate it encodes.
// Unknown extensions are preserved verbatim; extension is never defaulted
// to "jar" here — callers that need a packaging-derived default must apply
// it themselves once the POM (if any) has been read.
func ParseFromPath(path string) (Coordinate, error) {
	path = strings.TrimPrefix(path, "/")
	segments := strings.Split(path, "/")
	if len(segments) < 4 {
		return Coordinate{}, ErrNotAnArtifactPath
	}

	fileName := segments[len(segments)-1]
	version := segments[len(segments)-2]
	artifactID := segments[len(segments)-3]
	groupSegments := segments[:len(segments)-3]
	if len(groupSegments) == 0 {
		return Coordinate{}, ErrNotAnArtifactPath
	}
	groupID := strings.Join(groupSegments, ".")

	prefix := artifactID + "-" + version
	if !strings.HasPrefix(fileName, prefix) {
		return Coordinate{}, ErrNotAnArtifactPath
	}
	rest := fileName[len(prefix):]
	if rest == "" {
		return Coordinate{}, ErrNotAnArtifactPath
	}

	var classifier, extension string
	switch {
	case strings.HasPrefix(rest, "-"):
		rest = rest[1:]
		dot := strings.IndexByte(rest, '.')
		if dot < 0 {
			return Coordinate{}, ErrNotAnArtifactPath
		}
		classifier = rest[:dot]
		extension = rest[dot+1:]
	case strings.HasPrefix(rest, "."):
		extension = rest[1:]
	default:
		return Coordinate{}, ErrNotAnArtifactPath
	}
	if extension == "" {
		return Coordinate{}, ErrNotAnArtifactPath
	}

	return Coordinate{
		GroupID:    groupID,
		ArtifactID: artifactID,
		Version:    version,
		Classifier: classifier,
		Extension:  extension,
	}, nil
}

// String formats the coordinate as g:a:v[:c]:e, the conventional short form.
func (c Coordinate) String() string {
	if c.Classifier == "" {
		return strings.Join([]string{c.GroupID, c.ArtifactID, c.Version, c.Extension}, ":")
	}
	return strings.Join([]string{c.GroupID, c.ArtifactID, c.Version, c.Classifier, c.Extension}, ":")
}
