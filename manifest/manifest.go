// Package manifest loads declarative node definitions from YAML or JSON
// files and materializes them into a memfs tree, creating missing ancestor
// directories along the way.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/brettbedarf/treefs/memfs"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// UUIDXattr is the extended attribute under which each manifest-created
// node's identity is stored.
const UUIDXattr = "user.treefs.uuid"

// NodeType valid types are FileType "file", DirType "dir", SymlinkType "symlink"
type NodeType string

const (
	FileType    NodeType = "file"
	DirType     NodeType = "dir"
	SymlinkType NodeType = "symlink"
)

// Default permission bits per node type.
const (
	DefaultFileMode = uint32(0o644)
	DefaultDirMode  = uint32(0o755)
)

// NodeDef describes one node to create. Pointer fields distinguish unset
// from zero.
type NodeDef struct {
	Path    string   `yaml:"path" json:"path"`
	Type    NodeType `yaml:"type" json:"type"`
	Mode    *uint32  `yaml:"mode,omitempty" json:"mode,omitempty"`
	Content string   `yaml:"content,omitempty" json:"content,omitempty"`    // file body
	Target  string   `yaml:"target,omitempty" json:"target,omitempty"`     // symlink target
	UUID    *string  `yaml:"uuid,omitempty" json:"uuid,omitempty"`         // optional identity; generated when unset
}

// Load reads node definitions from a YAML (.yaml, .yml) or JSON (.json)
// file.
func Load(path string) ([]NodeDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var defs []NodeDef
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &defs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &defs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown manifest file extension: %s", path)
	}
	return defs, nil
}

// Build materializes the definitions under root in order. Missing ancestor
// directories are created with default directory permissions, equivalent to
// `mkdir -p`. Each created node is tagged with its UUID under [UUIDXattr].
func Build(root *memfs.Dir, defs []NodeDef) error {
	logger := util.GetLogger("manifest")
	for _, def := range defs {
		if err := apply(root, def); err != nil {
			logger.Error().Err(err).Str("path", def.Path).Msg("Failed to build manifest node")
			return err
		}
		logger.Debug().Str("path", def.Path).Str("type", string(def.Type)).Msg("Built manifest node")
	}
	return nil
}

func apply(root *memfs.Dir, def NodeDef) error {
	segs := treefs.SplitPath(def.Path)
	name := segs.PopBack()
	if name == "" {
		return fmt.Errorf("manifest node has empty path")
	}

	parent, err := ensureDirs(root, segs)
	if err != nil {
		return err
	}

	var node treefs.Node
	switch def.Type {
	case DirType:
		if existing, ok := parent.Child(name); ok {
			// mkdir -p semantics: an existing directory is fine
			if dir, isDir := existing.(*memfs.Dir); isDir {
				node = dir
				break
			}
			return fmt.Errorf("node already exists at path %s and is not a directory", def.Path)
		}
		node = memfs.NewDir(valueOrDefault(def.Mode, DefaultDirMode))
		parent.Add(name, node)
	case FileType:
		if _, ok := parent.Child(name); ok {
			return fmt.Errorf("node already exists at path %s", def.Path)
		}
		node = memfs.NewFile(valueOrDefault(def.Mode, DefaultFileMode), []byte(def.Content))
		parent.Add(name, node)
	case SymlinkType:
		if _, ok := parent.Child(name); ok {
			return fmt.Errorf("node already exists at path %s", def.Path)
		}
		if def.Target == "" {
			return fmt.Errorf("symlink at path %s has no target", def.Path)
		}
		node = memfs.NewSymlink(def.Target)
		parent.Add(name, node)
	default:
		return fmt.Errorf("unknown node type %q at path %s", def.Type, def.Path)
	}

	id := valueOrDefault(def.UUID, uuid.New().String())
	if errc := node.Setxattr(UUIDXattr, []byte(id), 0); errc != 0 {
		return fmt.Errorf("failed to tag node at path %s (errno %d)", def.Path, -errc)
	}
	return nil
}

// ensureDirs walks the prefix segments from root, creating missing
// directories.
func ensureDirs(root *memfs.Dir, segs treefs.Path) (*memfs.Dir, error) {
	cur := root
	for i, seg := range segs {
		child, ok := cur.Child(seg)
		if !ok {
			next := memfs.NewDir(DefaultDirMode)
			cur.Add(seg, next)
			cur = next
			continue
		}
		dir, isDir := child.(*memfs.Dir)
		if !isDir {
			return nil, fmt.Errorf("ancestor %s is not a directory", segs[:i+1])
		}
		cur = dir
	}
	return cur, nil
}

func valueOrDefault[T any](v *T, def T) T {
	if v != nil {
		return *v
	}
	return def
}
