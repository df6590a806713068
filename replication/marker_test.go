package replication

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kartikbazzad/coredoc/internal/util"
)

func TestWriteMarkerThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := MarkerPath(dir)

	m := &Marker{Role: RoleAuthority, Generation: 3, AuthorityNodeID: "node-a"}
	if err := WriteMarker(path, m); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	got, err := LoadMarker(path)
	if err != nil {
		t.Fatalf("load marker: %v", err)
	}
	if got.Role != RoleAuthority || got.Generation != 3 || got.AuthorityNodeID != "node-a" {
		t.Fatalf("unexpected marker: %+v", got)
	}
}

func TestLoadMarkerAbsentReportsErrMarkerAbsent(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadMarker(MarkerPath(dir))
	if !errors.Is(err, util.ErrMarkerAbsent) {
		t.Fatalf("expected ErrMarkerAbsent, got %v", err)
	}
}

func TestLoadMarkerCorruptReportsErrMarkerCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := MarkerPath(dir)
	if err := os.WriteFile(path, []byte("not a marker"), 0644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	_, err := LoadMarker(path)
	if !errors.Is(err, util.ErrMarkerCorrupt) {
		t.Fatalf("expected ErrMarkerCorrupt, got %v", err)
	}
}

func TestWriteMarkerLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := MarkerPath(dir)
	if err := WriteMarker(path, &Marker{Role: RoleFollower, Generation: 1, AuthorityNodeID: "node-a"}); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed away, stat err=%v", err)
	}
}

func TestWriteMarkerOverwritesPreviousGeneration(t *testing.T) {
	dir := t.TempDir()
	path := MarkerPath(dir)
	if err := WriteMarker(path, &Marker{Role: RoleAuthority, Generation: 1, AuthorityNodeID: "node-a"}); err != nil {
		t.Fatalf("write first marker: %v", err)
	}
	if err := WriteMarker(path, &Marker{Role: RoleFollower, Generation: 2, AuthorityNodeID: "node-b"}); err != nil {
		t.Fatalf("write second marker: %v", err)
	}

	got, err := LoadMarker(path)
	if err != nil {
		t.Fatalf("load marker: %v", err)
	}
	if got.Generation != 2 || got.Role != RoleFollower || got.AuthorityNodeID != "node-b" {
		t.Fatalf("expected overwritten marker, got %+v", got)
	}
}

func TestBootstrapRefusesExistingMarker(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{NodeID: "node-a", DataDir: dir}
	audit := DiscardAuditLogger()

	if _, err := Bootstrap(cfg, audit); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	if _, err := Bootstrap(cfg, audit); err == nil {
		t.Fatal("expected second bootstrap against an existing marker to fail")
	}
}

func TestBootRefusesWhenMarkerAbsent(t *testing.T) {
	dir := t.TempDir()
	_, err := Boot(Config{NodeID: "node-a", DataDir: dir}, DiscardAuditLogger())
	if err == nil {
		t.Fatal("expected boot without a marker to fail")
	}
}

func TestNodeBecomeAuthorityPersistsAcrossReboot(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{NodeID: "node-b", DataDir: dir}
	audit := DiscardAuditLogger()

	if err := WriteMarker(MarkerPath(dir), &Marker{Role: RoleFollower, Generation: 1, AuthorityNodeID: "node-a"}); err != nil {
		t.Fatalf("seed marker: %v", err)
	}
	node, err := Boot(cfg, audit)
	if err != nil {
		t.Fatalf("boot: %v", err)
	}
	if err := node.becomeAuthority(2); err != nil {
		t.Fatalf("become authority: %v", err)
	}

	rebooted, err := Boot(cfg, audit)
	if err != nil {
		t.Fatalf("reboot: %v", err)
	}
	if !rebooted.IsAuthority() || rebooted.Generation() != 2 {
		t.Fatalf("expected reboot to observe promoted role, got role=%s gen=%d", rebooted.Role(), rebooted.Generation())
	}
}

func TestMarkerPathUnderDataDir(t *testing.T) {
	if got := MarkerPath("/var/lib/coredoc"); got != filepath.Join("/var/lib/coredoc", "authority.marker") {
		t.Fatalf("unexpected marker path: %s", got)
	}
}
