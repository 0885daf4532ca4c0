// Package template resolves the shared template tree and the per-instance
// filesystem roots, and performs the recursive template copy that
// materializes a new instance.
package template

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Dirs locates the template tree and the instance trees. It is the
// filesystem collaborator consumed by the pool manager and the instance
// entity; it never touches the registry.
type Dirs struct {
	// TemplateRoot is the tree instances are cloned from.
	TemplateRoot string
	// InstancesRoot is the parent of all instance trees.
	InstancesRoot string
	// ActivitySubpath is the directory inside each instance whose most
	// recent modification counts as activity.
	ActivitySubpath string
}

// InstanceRoot returns the filesystem root of the instance with the given
// name.
func (d Dirs) InstanceRoot(name string) string {
	return filepath.Join(d.InstancesRoot, name)
}

// ActivityRoot returns the activity directory of the instance with the
// given name.
func (d Dirs) ActivityRoot(name string) string {
	return filepath.Join(d.InstanceRoot(name), filepath.FromSlash(d.ActivitySubpath))
}

// CopyTemplate recursively copies the template tree to the instance root
// for name. The destination must not already exist: names are unique by
// construction, so an existing directory means a previous copy is being
// clobbered.
func (d Dirs) CopyTemplate(name string) error {
	dst := d.InstanceRoot(name)
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("instance directory already exists: %s", dst)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check instance directory: %w", err)
	}

	if err := copyTree(d.TemplateRoot, dst); err != nil {
		return fmt.Errorf("failed to copy template to %s: %w", dst, err)
	}
	return nil
}

// RemoveInstance deletes the instance tree for name. Removing a tree that
// is already gone is not an error: a failed copy can leave a registry row
// with no backing directory.
func (d Dirs) RemoveInstance(name string) error {
	if err := os.RemoveAll(d.InstanceRoot(name)); err != nil {
		return fmt.Errorf("failed to remove instance directory: %w", err)
	}
	return nil
}

// InstanceExists reports whether the instance tree for name is present on
// disk.
func (d Dirs) InstanceExists(name string) bool {
	info, err := os.Stat(d.InstanceRoot(name))
	return err == nil && info.IsDir()
}

// copyTree recursively copies src to dst, preserving file modes and
// symlinks.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := entry.Info()
		if err != nil {
			return err
		}

		switch {
		case entry.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			// Sockets, devices and pipes have no place in a template tree.
			return fmt.Errorf("unsupported file type in template: %s", path)
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
