package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/seliria/questfile/manifest"
	"github.com/seliria/questfile/pkg/bytecode"
	"github.com/seliria/questfile/pkg/dat"
	"github.com/seliria/questfile/pkg/quest"
)

func cmdPack(args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	outFile := fs.String("o", "", "output archive (default: output.file from quest.toml)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: qf pack [options] [dir]\n\n")
		fmt.Fprintf(os.Stderr, "Reads quest.toml from dir, or searches upward from the working\n")
		fmt.Fprintf(os.Stderr, "directory when dir is omitted, assembles the script and packs\n")
		fmt.Fprintf(os.Stderr, "everything into a .qst archive.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return fmt.Errorf("pack takes at most one directory")
	}

	var m *manifest.Manifest
	var err error
	if fs.NArg() > 0 {
		m, err = manifest.Load(fs.Arg(0))
	} else {
		m, err = manifest.FindAndLoad(".")
		if err == nil && m == nil {
			err = fmt.Errorf("no quest.toml found in the working directory or any parent")
		}
	}
	if err != nil {
		return err
	}

	source, err := os.ReadFile(m.ScriptPath())
	if err != nil {
		return err
	}
	asm := bytecode.Assemble(string(source))
	for _, e := range asm.Errors {
		fmt.Fprintf(os.Stderr, "%s:%d: %s\n", m.Source.Script, e.Line, e.Msg)
	}
	if len(asm.Errors) > 0 {
		return fmt.Errorf("assembly failed with %d errors", len(asm.Errors))
	}
	printWarnings(asm.Warnings)

	entData, err := os.ReadFile(m.EntitiesPath())
	if err != nil {
		return err
	}
	entities, err := dat.Parse(entData)
	if err != nil {
		return err
	}

	q, warnings := quest.NewQuest(quest.Info{
		QuestNo:   m.Quest.Number,
		ID:        m.Quest.ID,
		Language:  m.Quest.Language,
		Name:      m.Quest.Name,
		ShortDesc: m.Quest.ShortDesc,
		LongDesc:  m.Quest.LongDesc,
		ShopItems: m.Quest.ShopItems,
	}, entities, asm.Segments)
	printWarnings(warnings)

	// A pinned episode is checked against the script, never substituted
	// for it.
	if m.Quest.Episode != 0 && quest.Episode(m.Quest.Episode) != q.Episode {
		return fmt.Errorf("quest.toml pins %s but the script selects %s",
			quest.Episode(m.Quest.Episode), q.Episode)
	}

	out := m.OutputPath()
	if *outFile != "" {
		out = *outFile
	}
	packed, err := newCodec().EncodeQuest(q, filepath.Base(out))
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, packed, 0644); err != nil {
		return err
	}

	fmt.Printf("Packed %s (%d bytes)\n", out, len(packed))
	return nil
}
