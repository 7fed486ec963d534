// configgen generates Go and TypeScript config structs from .config files.
//
// Usage:
//
//	configgen -input=arena.config -go=arena_config_gen.go -ts=arena_config.ts
//
// Config file format:
//
//	package arena
//
//	config ArenaConfig {
//	    MaxPlayers      int32   @default(8)    @min(2)  @max(32)
//	    RoundSeconds    int32   @default(120)   @min(30) // round duration
//	    AllowSpectators bool    @default(true)
//	}
//
// Annotations:
//
//	@default(value)   - default value
//	@min(value)       - minimum value (numbers)
//	@max(value)       - maximum value (numbers)
//	@options(a,b,c)   - valid options (strings)
//	@env(NAME)        - environment variable override name
//	@required         - marks the field required (parsed and recorded; the
//	                    generated code does not check it)
//
// Generated Go code loads and validates config the same way the library's
// own NetworkConfig does: github.com/mxkacsa/tinyconf for JSON-file load/
// create/env-override, and a Validate() method enforcing @min/@max/@options.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	inputFile = flag.String("input", "", "input .config file (required)")
	goOutput  = flag.String("go", "", "Go output file (optional)")
	tsOutput  = flag.String("ts", "", "TypeScript output file (optional)")
)

func main() {
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintln(os.Stderr, "configgen: -input flag is required")
		flag.Usage()
		os.Exit(1)
	}

	f, err := os.Open(*inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configgen: cannot open input file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	config, err := Parse(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configgen: parse error: %v\n", err)
		os.Exit(1)
	}

	if config.Package == "" {
		base := filepath.Base(*inputFile)
		config.Package = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if *goOutput != "" {
		goCode, err := GenerateGo(config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configgen: Go generation error: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*goOutput, goCode, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "configgen: cannot write Go output: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated: %s\n", *goOutput)
	}

	if *tsOutput != "" {
		tsCode, err := GenerateTS(config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configgen: TypeScript generation error: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*tsOutput, tsCode, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "configgen: cannot write TypeScript output: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated: %s\n", *tsOutput)
	}

	if *goOutput == "" && *tsOutput == "" {
		fmt.Fprintln(os.Stderr, "configgen: no output specified, use -go or -ts")
		os.Exit(1)
	}
}
