package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/seliria/questfile/pkg/bytecode"
	"github.com/seliria/questfile/pkg/quest"
)

func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	lenient := fs.Bool("lenient", false, "keep going when the object code is malformed")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: qf info [options] quest.qst\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("info needs exactly one archive")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	result, err := newCodec().DecodeQuest(data, *lenient)
	if err != nil {
		return err
	}
	printWarnings(result.Warnings)

	printSnapshot(result.Quest.Snapshot())
	fmt.Printf("Segments:  %d\n", len(result.Quest.Segments))
	if n := len(result.Quest.UnknownChunks); n > 0 {
		fmt.Printf("Unknown:   %d entity chunks\n", n)
	}
	return nil
}

func cmdDisasm(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	outFile := fs.String("o", "", "write the assembly to a file instead of stdout")
	lenient := fs.Bool("lenient", false, "keep going when the object code is malformed")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: qf disasm [options] quest.qst\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("disasm needs exactly one archive")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	result, err := newCodec().DecodeQuest(data, *lenient)
	if err != nil {
		return err
	}
	printWarnings(result.Warnings)

	script := strings.Join(bytecode.Disassemble(result.Quest.Segments), "\n") + "\n"
	if *outFile == "" {
		fmt.Print(script)
		return nil
	}
	return os.WriteFile(*outFile, []byte(script), 0644)
}

// printSnapshot renders the summary both info and catalog show share.
func printSnapshot(s *quest.Snapshot) {
	fmt.Printf("Name:      %s\n", s.Name)
	fmt.Printf("Quest:     number %d, id %d, language %d\n", s.QuestNo, s.ID, s.Language)
	fmt.Printf("Episode:   %s\n", quest.Episode(s.Episode))
	if s.ShortDesc != "" {
		fmt.Printf("Short:     %s\n", oneLine(s.ShortDesc))
	}
	if len(s.Areas) > 0 {
		parts := make([]string, len(s.Areas))
		for i, area := range s.Areas {
			parts[i] = fmt.Sprintf("%d", area)
		}
		fmt.Printf("Areas:     %s\n", strings.Join(parts, ", "))
	}
	if len(s.MapDesignations) > 0 {
		areas := make([]uint32, 0, len(s.MapDesignations))
		for area := range s.MapDesignations {
			areas = append(areas, area)
		}
		sort.Slice(areas, func(i, j int) bool { return areas[i] < areas[j] })
		parts := make([]string, len(areas))
		for i, area := range areas {
			parts[i] = fmt.Sprintf("area %d variant %d", area, s.MapDesignations[area])
		}
		fmt.Printf("Maps:      %s\n", strings.Join(parts, ", "))
	}
	fmt.Printf("Objects:   %d\n", s.ObjectCount)

	total := 0
	for _, n := range s.NpcCounts {
		total += n
	}
	fmt.Printf("NPCs:      %d\n", total)
	if len(s.NpcCounts) > 0 {
		names := make([]string, 0, len(s.NpcCounts))
		for name := range s.NpcCounts {
			names = append(names, name)
		}
		// Largest groups first, ties by name.
		sort.Slice(names, func(i, j int) bool {
			if s.NpcCounts[names[i]] != s.NpcCounts[names[j]] {
				return s.NpcCounts[names[i]] > s.NpcCounts[names[j]]
			}
			return names[i] < names[j]
		})
		for _, name := range names {
			fmt.Printf("  %4d %s\n", s.NpcCounts[name], name)
		}
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
