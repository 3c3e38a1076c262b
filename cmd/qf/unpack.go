package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/seliria/questfile/manifest"
	"github.com/seliria/questfile/pkg/bytecode"
	"github.com/seliria/questfile/pkg/dat"
	"github.com/seliria/questfile/pkg/quest"
)

func cmdUnpack(args []string) error {
	fs := flag.NewFlagSet("unpack", flag.ExitOnError)
	outDir := fs.String("o", "", "output directory (default: archive name without extension)")
	lenient := fs.Bool("lenient", false, "keep going when the object code is malformed")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: qf unpack [options] quest.qst\n\n")
		fmt.Fprintf(os.Stderr, "Writes quest.qasm, quest.dat and quest.toml into the output directory.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("unpack needs exactly one archive")
	}
	path := fs.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	result, err := newCodec().DecodeQuest(data, *lenient)
	if err != nil {
		return err
	}
	printWarnings(result.Warnings)
	q := result.Quest

	dir := *outDir
	if dir == "" {
		dir = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	script := strings.Join(bytecode.Disassemble(q.Segments), "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, "quest.qasm"), []byte(script), 0644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "quest.dat"), entityFile(q).Serialize(), 0644); err != nil {
		return err
	}

	m := &manifest.Manifest{
		Quest: manifest.Quest{
			Number:    q.QuestNo,
			ID:        q.ID,
			Language:  q.Language,
			Name:      q.Name,
			ShortDesc: q.ShortDesc,
			LongDesc:  q.LongDesc,
			Episode:   uint8(q.Episode),
			ShopItems: q.ShopItems,
		},
		Source: manifest.Source{Script: "quest.qasm", Entities: "quest.dat"},
		Output: manifest.Output{File: filepath.Base(path)},
	}
	if err := manifest.Save(dir, m); err != nil {
		return err
	}

	fmt.Printf("Unpacked %q into %s: %s, %d objects, %d NPCs\n",
		q.Name, dir, q.Episode, len(q.Objects), len(q.Npcs))
	return nil
}

// entityFile rebuilds the raw entity table from a decoded quest.
func entityFile(q *quest.Quest) *dat.File {
	f := &dat.File{Objects: q.Objects, Unknown: q.UnknownChunks}
	f.Npcs = make([]dat.Npc, len(q.Npcs))
	for i, npc := range q.Npcs {
		f.Npcs[i] = dat.Npc{Area: npc.Area, Record: npc.Record}
	}
	return f
}
