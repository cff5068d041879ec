// Command lint-api checks the gateway's OpenAPI contract against project
// conventions.
//
// Usage:
//
//	go run ./cmd/lint-api [flags] internal/openapi/openapi.yaml
//
// Flags:
//
//	-severity    Minimum severity to report: error, warning, info (default: all)
//	-config      Path to an .apilint.yaml override file (default: nearest to the spec)
//	-vacuum      Also run the conventions through vacuum's engine
//	-list-rules  Print the registered rules and exit
//
// The process exits 1 when any error-severity violation remains, 2 on usage
// or load problems.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"scoutgw/pkg/apilint"
)

func main() {
	severity := flag.String("severity", "", "minimum severity to report: error, warning, info (default: all)")
	configPath := flag.String("config", "", "path to an .apilint.yaml override file (default: nearest to the spec)")
	withVacuum := flag.Bool("vacuum", false, "also run the conventions through vacuum's engine")
	listRules := flag.Bool("list-rules", false, "print the registered rules and exit")
	flag.Parse()

	if *listRules {
		for _, r := range apilint.RegisteredRules() {
			fmt.Printf("%-28s %-8s %s\n", r.ID(), r.DefaultSeverity(), r.Description())
		}
		return
	}

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "usage: lint-api [flags] <openapi.yaml>\n")
		os.Exit(2)
	}
	path := flag.Arg(0)

	var cfg *apilint.Config
	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = apilint.FindConfig(filepath.Dir(path))
	}
	if cfgPath != "" {
		var err error
		cfg, err = apilint.LoadConfig(cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(2)
		}
	}

	linter, err := apilint.New(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	violations := linter.RunWithConfig(cfg)

	if *withVacuum {
		vvs, err := apilint.RunVacuum(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(2)
		}
		violations = append(violations, vvs...)
	}

	if *severity != "" {
		sev, err := apilint.ParseSeverity(*severity)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(2)
		}
		violations = apilint.Filter(violations, sev)
	}

	for _, v := range violations {
		fmt.Println(v)
	}
	if len(violations) == 0 {
		fmt.Printf("%s: ok (0 violations)\n", path)
	} else {
		fmt.Printf("\n%d violation(s) found\n", len(violations))
	}

	if apilint.HasErrors(violations) {
		os.Exit(1)
	}
}
