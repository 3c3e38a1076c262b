// qf - quest archive toolbox: unpack Blue Burst quest containers into
// editable sources, rebuild them, browse a local catalog, or serve
// editor features over LSP.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/seliria/questfile/pkg/prs"
	"github.com/seliria/questfile/pkg/quest"
	"github.com/seliria/questfile/server"
)

const versionStr = "0.3.0"

func usage() {
	fmt.Fprintf(os.Stderr, "qf - Blue Burst quest archive toolbox\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  qf <command> [options] [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  unpack    extract a .qst archive into editable sources\n")
	fmt.Fprintf(os.Stderr, "  pack      build a .qst archive from a quest.toml project\n")
	fmt.Fprintf(os.Stderr, "  info      print the header and entity summary of an archive\n")
	fmt.Fprintf(os.Stderr, "  disasm    print the script of an archive as assembly\n")
	fmt.Fprintf(os.Stderr, "  catalog   index archives in a SQLite catalog\n")
	fmt.Fprintf(os.Stderr, "  lsp       serve quest script editor features over stdio\n")
	fmt.Fprintf(os.Stderr, "  version   print version and exit\n\n")
	fmt.Fprintf(os.Stderr, "Examples:\n")
	fmt.Fprintf(os.Stderr, "  qf unpack quest118.qst               # extract into quest118/\n")
	fmt.Fprintf(os.Stderr, "  qf pack quest118                     # rebuild from quest118/quest.toml\n")
	fmt.Fprintf(os.Stderr, "  qf catalog -db quests.db add a.qst b.qst\n")
	fmt.Fprintf(os.Stderr, "  qf catalog -db quests.db -episode 2 list\n")
}

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch cmd := args[0]; cmd {
	case "unpack":
		err = cmdUnpack(args[1:])
	case "pack":
		err = cmdPack(args[1:])
	case "info":
		err = cmdInfo(args[1:])
	case "disasm":
		err = cmdDisasm(args[1:])
	case "catalog":
		err = cmdCatalog(args[1:])
	case "lsp":
		err = cmdLsp(args[1:])
	case "version":
		fmt.Printf("qf version %s\n", versionStr)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "qf: unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newCodec builds the codec every command shares.
func newCodec() *quest.Codec {
	return &quest.Codec{Compressor: prs.Codec{}}
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
}

func cmdLsp(args []string) error {
	fs := flag.NewFlagSet("lsp", flag.ExitOnError)
	verbose := fs.Bool("v", false, "verbose logging to stderr")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: qf lsp [options]\n\nSpeaks LSP over stdio. Point your editor at it for .qasm files.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	return server.NewLSP().Run()
}
