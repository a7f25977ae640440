package main

import (
	"fmt"
	"strconv"
	"strings"

	"stellar-hierarchy/hierarchy"
)

// Snapshot format version of the persisted registry
const (
	SnapshotMajor = 1
	SnapshotMinor = 1
	SnapshotPatch = 0
)

var CurrentSnapshotVersion = SnapshotVersion{
	Major: SnapshotMajor,
	Minor: SnapshotMinor,
	Patch: SnapshotPatch,
}

// SnapshotVersion represents a semantic version
type SnapshotVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// String returns the version as a string (e.g., "1.1.0")
func (v SnapshotVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion parses a version string into a SnapshotVersion
func ParseVersion(s string) (SnapshotVersion, error) {
	parts := strings.Split(strings.TrimPrefix(s, "v"), ".")
	if len(parts) != 3 {
		return SnapshotVersion{}, fmt.Errorf("invalid version format: %s", s)
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return SnapshotVersion{}, fmt.Errorf("invalid major version: %s", parts[0])
	}

	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return SnapshotVersion{}, fmt.Errorf("invalid minor version: %s", parts[1])
	}

	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return SnapshotVersion{}, fmt.Errorf("invalid patch version: %s", parts[2])
	}

	return SnapshotVersion{Major: major, Minor: minor, Patch: patch}, nil
}

// IsCompatibleWith checks if a snapshot written by other can be loaded
// Major version must match for compatibility
func (v SnapshotVersion) IsCompatibleWith(other SnapshotVersion) bool {
	return v.Major == other.Major
}

// IsNewerThan returns true if this version is newer than other
func (v SnapshotVersion) IsNewerThan(other SnapshotVersion) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor > other.Minor
	}
	return v.Patch > other.Patch
}

// CanRead reports whether v can load a snapshot written as other: the major
// version matches and other was not written by a newer minor release. Patch
// releases never change the format.
func (v SnapshotVersion) CanRead(other SnapshotVersion) bool {
	if !v.IsCompatibleWith(other) {
		return false
	}
	written := SnapshotVersion{Major: other.Major, Minor: other.Minor}
	return !written.IsNewerThan(SnapshotVersion{Major: v.Major, Minor: v.Minor})
}

// VersionInfo is served by /api/version
type VersionInfo struct {
	Snapshot string           `json:"snapshot"` // Snapshot format version (e.g., "1.1.0")
	Software string           `json:"software"` // Software identifier
	Engine   hierarchy.Config `json:"engine"`   // Active engine thresholds
}

// GetVersionInfo returns the current version info
func GetVersionInfo(cfg hierarchy.Config) VersionInfo {
	return VersionInfo{
		Snapshot: CurrentSnapshotVersion.String(),
		Software: "stellar-hierarchy",
		Engine:   cfg,
	}
}
