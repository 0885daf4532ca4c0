package template

import (
	"os"
	"path/filepath"
	"testing"
)

// newTestDirs builds a small template tree and returns Dirs rooted in a
// temp directory.
func newTestDirs(t *testing.T) Dirs {
	t.Helper()

	base := t.TempDir()
	tpl := filepath.Join(base, "template")

	if err := os.MkdirAll(filepath.Join(tpl, "data", "pages"), 0755); err != nil {
		t.Fatalf("failed to build template tree: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tpl, "index.html"), []byte("<h1>demo</h1>"), 0644); err != nil {
		t.Fatalf("failed to write template file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tpl, "data", "pages", "home.md"), []byte("# home"), 0600); err != nil {
		t.Fatalf("failed to write template file: %v", err)
	}
	if err := os.Symlink("index.html", filepath.Join(tpl, "start.html")); err != nil {
		t.Fatalf("failed to create template symlink: %v", err)
	}

	return Dirs{
		TemplateRoot:    tpl,
		InstancesRoot:   filepath.Join(base, "instances"),
		ActivitySubpath: "data",
	}
}

func TestInstanceRoot(t *testing.T) {
	d := Dirs{InstancesRoot: "/srv/instances", ActivitySubpath: "data"}

	if got := d.InstanceRoot("ab12cd34"); got != filepath.Join("/srv/instances", "ab12cd34") {
		t.Errorf("InstanceRoot = %q", got)
	}
	if got := d.ActivityRoot("ab12cd34"); got != filepath.Join("/srv/instances", "ab12cd34", "data") {
		t.Errorf("ActivityRoot = %q", got)
	}
}

func TestCopyTemplate(t *testing.T) {
	d := newTestDirs(t)

	if err := d.CopyTemplate("ab12cd34"); err != nil {
		t.Fatalf("CopyTemplate failed: %v", err)
	}

	root := d.InstanceRoot("ab12cd34")

	data, err := os.ReadFile(filepath.Join(root, "index.html"))
	if err != nil {
		t.Fatalf("copied file missing: %v", err)
	}
	if string(data) != "<h1>demo</h1>" {
		t.Errorf("copied content = %q", data)
	}

	info, err := os.Stat(filepath.Join(root, "data", "pages", "home.md"))
	if err != nil {
		t.Fatalf("nested copied file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("file mode not preserved: %v", info.Mode().Perm())
	}

	link, err := os.Readlink(filepath.Join(root, "start.html"))
	if err != nil {
		t.Fatalf("symlink not copied: %v", err)
	}
	if link != "index.html" {
		t.Errorf("symlink target = %q, want index.html", link)
	}
}

func TestCopyTemplate_RefusesExistingDirectory(t *testing.T) {
	d := newTestDirs(t)

	if err := d.CopyTemplate("ab12cd34"); err != nil {
		t.Fatalf("CopyTemplate failed: %v", err)
	}
	if err := d.CopyTemplate("ab12cd34"); err == nil {
		t.Fatal("copying over an existing instance directory must fail")
	}
}

func TestRemoveInstance(t *testing.T) {
	d := newTestDirs(t)

	if err := d.CopyTemplate("ab12cd34"); err != nil {
		t.Fatalf("CopyTemplate failed: %v", err)
	}
	if !d.InstanceExists("ab12cd34") {
		t.Fatal("InstanceExists should report true after copy")
	}

	if err := d.RemoveInstance("ab12cd34"); err != nil {
		t.Fatalf("RemoveInstance failed: %v", err)
	}
	if d.InstanceExists("ab12cd34") {
		t.Error("InstanceExists should report false after removal")
	}

	// Removing an already-absent tree is not an error (copy-failure orphans).
	if err := d.RemoveInstance("ab12cd34"); err != nil {
		t.Errorf("removing an absent instance should be a no-op, got: %v", err)
	}
}
