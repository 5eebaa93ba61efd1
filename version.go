package oren

import (
	"strconv"
	"strings"
)

// Version is a parsed "major.minor.micro" server or client version.
type Version struct {
	major, minor, micro uint16
	version             string
}

// parseVersion parses a version string into Version components.
//
// Examples:
//   - "2.0"     → Version{major: 2, minor: 0, micro: 0}
//   - "2.10.3"  → Version{major: 2, minor: 10, micro: 3}
//
// Invalid or missing segments default to 0 and are logged, so a malformed
// server version never aborts a login on its own.
func parseVersion(str string) Version {
	v := Version{version: str}
	segments := strings.Split(strings.TrimSpace(str), ".")
	n := len(segments)
	if n > 0 {
		v.major = parseVersionSegment(segments[0], "major", str)
	}
	if n > 1 {
		v.minor = parseVersionSegment(segments[1], "minor", str)
	}
	if n > 2 {
		v.micro = parseVersionSegment(segments[2], "micro", str)
	}
	return v
}

// parseVersionSegment parses a single version segment string into a uint16.
func parseVersionSegment(segment, segmentName, fullVersion string) uint16 {
	i, err := strconv.ParseUint(segment, 10, 16)
	if err != nil {
		Warning("Invalid %s version '%s' in version '%s', defaulting to 0", segmentName, segment, fullVersion)
		return 0
	}
	return uint16(i)
}

func (v Version) String() string {
	return v.version
}

// compare returns -1, 0 or 1 as v is older than, equal to or newer than other.
func (v Version) compare(other Version) int {
	a := [3]uint16{v.major, v.minor, v.micro}
	b := [3]uint16{other.major, other.minor, other.micro}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// versionInRange reports whether server lies within [min, max]. Empty bounds are open.
func versionInRange(server, min, max string) bool {
	v := parseVersion(server)
	if min != "" && v.compare(parseVersion(min)) < 0 {
		return false
	}
	if max != "" && v.compare(parseVersion(max)) > 0 {
		return false
	}
	return true
}
