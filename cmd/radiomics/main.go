package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// command is one radiomics subcommand.
type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string) error
}

var commands = []command{
	{"import", "Read patient PNG stacks into a stored 3D set", runImport},
	{"stats", "Write per-sample intensity, shape and texture statistics", runStats},
	{"organize", "Analyse, trim, split and save a training and a test set", runOrganize},
	{"crossval", "Cross-validate the classifier over a hyper-parameter grid", runCrossval},
	{"search", "Filter the samples of an experiment results document", runSearch},
	{"preview", "Render the slices of one sample as a PNG montage", runPreview},
	{"serve", "Serve datasets and results over MCP on stdin/stdout", runServe},
	{"config", "Print the default radiomics.yaml", runConfig},
}

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Printf("radiomics %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		printHelp()
		return
	}

	// stdout carries reports and, for serve, the MCP protocol.
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if os.Getenv("RADIOMICS_LOG_LEVEL") == "debug" {
		log.Printf("radiomics v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, c := range commands {
		if c.name != os.Args[1] {
			continue
		}
		if err := c.run(ctx, os.Args[2:]); err != nil {
			if errors.Is(err, errUsage) {
				os.Exit(2)
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", os.Args[1])
	printHelp()
	os.Exit(2)
}

func printHelp() {
	fmt.Println("radiomics - tumour dataset curation and cross-validation")
	fmt.Println()
	fmt.Println("Usage: radiomics <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	for _, c := range commands {
		fmt.Printf("  %-10s %s\n", c.name, c.summary)
	}
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Run 'radiomics <command> -h' for the options of a command.")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  RADIOMICS_LOG_LEVEL=debug    Enable debug logging")
}
