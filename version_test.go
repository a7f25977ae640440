package main

import (
	"testing"

	"stellar-hierarchy/hierarchy"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input   string
		want    SnapshotVersion
		wantErr bool
	}{
		{input: "1.2.3", want: SnapshotVersion{1, 2, 3}},
		{input: "v1.1.0", want: SnapshotVersion{1, 1, 0}},
		{input: "0.0.0", want: SnapshotVersion{0, 0, 0}},
		{input: "10.20.30", want: SnapshotVersion{10, 20, 30}},
		{input: "1.2", wantErr: true},
		{input: "1.2.3.4", wantErr: true},
		{input: "a.2.3", wantErr: true},
		{input: "1.b.3", wantErr: true},
		{input: "1.2.c", wantErr: true},
		{input: "", wantErr: true},
		{input: "dev", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseVersion(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSnapshotVersion_RoundTrip(t *testing.T) {
	parsed, err := ParseVersion(CurrentSnapshotVersion.String())
	if err != nil {
		t.Fatalf("current version does not parse: %v", err)
	}
	if parsed != CurrentSnapshotVersion {
		t.Errorf("round trip = %v, want %v", parsed, CurrentSnapshotVersion)
	}
}

func TestSnapshotVersion_Compare(t *testing.T) {
	tests := []struct {
		name           string
		v1, v2         SnapshotVersion
		wantCompatible bool
		wantNewer      bool
	}{
		{"same version", SnapshotVersion{1, 1, 0}, SnapshotVersion{1, 1, 0}, true, false},
		{"higher minor", SnapshotVersion{1, 2, 0}, SnapshotVersion{1, 1, 0}, true, true},
		{"lower patch", SnapshotVersion{1, 1, 0}, SnapshotVersion{1, 1, 4}, true, false},
		{"higher major", SnapshotVersion{2, 0, 0}, SnapshotVersion{1, 9, 9}, false, true},
		{"v0 vs v1", SnapshotVersion{0, 9, 0}, SnapshotVersion{1, 0, 0}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v1.IsCompatibleWith(tt.v2); got != tt.wantCompatible {
				t.Errorf("%v.IsCompatibleWith(%v) = %v, want %v", tt.v1, tt.v2, got, tt.wantCompatible)
			}
			if got := tt.v1.IsNewerThan(tt.v2); got != tt.wantNewer {
				t.Errorf("%v.IsNewerThan(%v) = %v, want %v", tt.v1, tt.v2, got, tt.wantNewer)
			}
		})
	}
}

func TestSnapshotVersion_CanRead(t *testing.T) {
	reader := SnapshotVersion{1, 1, 0}
	tests := []struct {
		written SnapshotVersion
		want    bool
	}{
		{SnapshotVersion{1, 1, 0}, true},
		{SnapshotVersion{1, 1, 9}, true},
		{SnapshotVersion{1, 0, 3}, true},
		{SnapshotVersion{1, 2, 0}, false},
		{SnapshotVersion{0, 9, 0}, false},
		{SnapshotVersion{2, 0, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.written.String(), func(t *testing.T) {
			if got := reader.CanRead(tt.written); got != tt.want {
				t.Errorf("%v.CanRead(%v) = %v, want %v", reader, tt.written, got, tt.want)
			}
		})
	}
}

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo(hierarchy.DefaultConfig())
	if info.Snapshot != CurrentSnapshotVersion.String() {
		t.Errorf("Snapshot = %s, want %s", info.Snapshot, CurrentSnapshotVersion)
	}
	if info.Software != "stellar-hierarchy" {
		t.Errorf("Software = %s", info.Software)
	}
	if info.Engine.SwitchMargin != 1.5 || info.Engine.StealMultiplier != 3 {
		t.Errorf("Engine thresholds = %+v", info.Engine)
	}
}
