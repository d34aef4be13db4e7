// Package cli implements the everest command line.
package cli

import (
	"fmt"
	"io"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// stdout receives command output
var stdout io.Writer = os.Stdout

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Import  *ImportCommand
	Scrape  *ScrapeCommand
	Cluster *ClusterCommand
	Network *NetworkCommand
	Summary *SummaryCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "everest"
	parser.LongDescription = "Groups referring domains by page content and by link structure and summarizes their metrics."

	cmds := &commands{
		Import:  &ImportCommand{globals: &globals, version: version},
		Scrape:  &ScrapeCommand{globals: &globals, version: version},
		Cluster: &ClusterCommand{globals: &globals, version: version},
		Network: &NetworkCommand{globals: &globals, version: version},
		Summary: &SummaryCommand{globals: &globals, version: version},
	}

	parser.AddCommand("import", "Import domain metrics", "Import referring-domain metrics from CSV or XLSX exports.", cmds.Import)
	parser.AddCommand("scrape", "Scrape referring domains", "Fetch the home page of each referring domain and store its text, language and links.", cmds.Scrape)
	parser.AddCommand("cluster", "Cluster scraped pages", "Cluster scraped pages by content within each language and store the labels.", cmds.Cluster)
	parser.AddCommand("network", "Decompose the link graph", "Build the link graph between scraped domains and store its weakly-connected components.", cmds.Network)
	parser.AddCommand("summary", "Summarize clusters and components", "Join clusters and components with domain metrics and print or export the summaries.", cmds.Summary)

	return parser, &globals, cmds
}

// Run is the main entry point for the everest CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// --version is valid without a subcommand
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Fprintf(stdout, "everest %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			return nil
		}
		return err
	}

	return nil
}
