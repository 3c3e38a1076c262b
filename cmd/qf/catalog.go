package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/seliria/questfile/catalog"
	"github.com/seliria/questfile/pkg/quest"
)

func cmdCatalog(args []string) error {
	fs := flag.NewFlagSet("catalog", flag.ExitOnError)
	dbPath := fs.String("db", "quests.db", "catalog database file")
	episode := fs.Uint("episode", 0, "restrict list to one episode (1, 2 or 4)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: qf catalog [options] <action> [quest.qst ...]

Actions:
  add     decode archives and index them
  remove  drop archives from the index
  list    print one line per indexed quest
  show    print the stored summary of one archive

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("catalog needs an action")
	}
	action, paths := fs.Arg(0), fs.Args()[1:]

	cat, err := catalog.Open(*dbPath, newCodec())
	if err != nil {
		return err
	}
	defer cat.Close()

	switch action {
	case "add":
		if len(paths) == 0 {
			return fmt.Errorf("add needs at least one archive")
		}
		for _, path := range paths {
			q, warnings, err := cat.Add(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			printWarnings(warnings)
			fmt.Printf("Added %s: quest %d %q\n", path, q.QuestNo, q.Name)
		}
		return nil

	case "remove":
		if len(paths) == 0 {
			return fmt.Errorf("remove needs at least one archive")
		}
		for _, path := range paths {
			if err := cat.Remove(path); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("Removed %s\n", path)
		}
		return nil

	case "list":
		var entries []catalog.Entry
		if *episode == 0 {
			entries, err = cat.List()
		} else {
			entries, err = cat.ListEpisode(quest.Episode(*episode))
		}
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("catalog is empty")
			return nil
		}
		fmt.Printf("%-5s %-10s %-10s %-4s %-4s %s\n", "NO", "ID", "EPISODE", "OBJ", "NPC", "NAME")
		for _, e := range entries {
			fmt.Printf("%-5d %-10d %-10s %-4d %-4d %s\n",
				e.QuestNo, e.ID, e.Episode, e.ObjectCount, e.NpcCount, e.Name)
		}
		return nil

	case "show":
		if len(paths) != 1 {
			return fmt.Errorf("show needs exactly one archive")
		}
		snap, err := cat.Snapshot(paths[0])
		if err != nil {
			return err
		}
		printSnapshot(snap)
		return nil
	}

	fs.Usage()
	return fmt.Errorf("unknown catalog action %q", action)
}
