// Package manifest handles quest.toml project configuration.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a quest.toml file: the metadata sidecar unpack
// writes next to the extracted sources and pack reads back. Binary
// inputs stay in their own files; the manifest carries everything that
// is text.
type Manifest struct {
	Quest  Quest  `toml:"quest"`
	Source Source `toml:"source"`
	Output Output `toml:"output"`

	// Dir is the directory containing the quest.toml file (set at load time).
	Dir string `toml:"-"`
}

// Quest carries the container and script header fields.
type Quest struct {
	Number    uint16 `toml:"number"`
	ID        uint32 `toml:"id"`
	Language  uint32 `toml:"language"`
	Name      string `toml:"name"`
	ShortDesc string `toml:"short-description"`
	LongDesc  string `toml:"long-description"`

	// Episode pins the episode for NPC identity checks; 0 derives it
	// from the script's set_episode.
	Episode   uint8    `toml:"episode"`
	ShopItems []uint32 `toml:"shop-items"`
}

// Source names the files pack reads, relative to the manifest directory.
type Source struct {
	Script   string `toml:"script"`
	Entities string `toml:"entities"`
}

// Output names the container pack writes, relative to the manifest
// directory.
type Output struct {
	File string `toml:"file"`
}

// Load parses a quest.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "quest.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	switch m.Quest.Episode {
	case 0, 1, 2, 4:
	default:
		return nil, fmt.Errorf("%s: episode must be 1, 2 or 4, not %d", path, m.Quest.Episode)
	}

	// Defaults
	if m.Source.Script == "" {
		m.Source.Script = "quest.qasm"
	}
	if m.Source.Entities == "" {
		m.Source.Entities = "quest.dat"
	}
	if m.Output.File == "" {
		m.Output.File = fmt.Sprintf("quest%d.qst", m.Quest.Number)
	}

	return &m, nil
}

// Save writes the manifest as quest.toml into dir.
func Save(dir string, m *Manifest) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return fmt.Errorf("encoding quest.toml: %w", err)
	}
	path := filepath.Join(dir, "quest.toml")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

// FindAndLoad walks up from startDir to find a quest.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "quest.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// ScriptPath returns the absolute path of the assembly source.
func (m *Manifest) ScriptPath() string {
	return filepath.Join(m.Dir, m.Source.Script)
}

// EntitiesPath returns the absolute path of the entity table.
func (m *Manifest) EntitiesPath() string {
	return filepath.Join(m.Dir, m.Source.Entities)
}

// OutputPath returns the absolute path of the packed container.
func (m *Manifest) OutputPath() string {
	return filepath.Join(m.Dir, m.Output.File)
}
