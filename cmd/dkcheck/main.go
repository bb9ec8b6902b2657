// dkcheck — process JSON entry streams through the checker.
//
// Usage: dkcheck [flags] stream.json...
//
// Each input file holds one module: {"module": "...", "entries": [...]},
// the JSON encoding of the façade's entry stream (an external parser
// produces it from surface syntax). Entries are processed in order; the
// first failure stops the run.
//
// Exit codes: 0 success, 1 I/O or usage, 3 typing/signature failure,
// 42 anything else.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"

	dedukti "github.com/XVilka/Dedukti"
)

var (
	loadPath   = flag.String("path", ".", "colon-separated directories searched for compiled signatures")
	configFile = flag.String("config", "", "YAML run configuration applied to entries without one")
	exportFile = flag.String("export", "", "write the final signature dump to this file")
	quiet      = flag.Bool("quiet", false, "suppress query output")
)

type streamFile struct {
	Module  string            `json:"module"`
	Entries []*dedukti.Entry  `json:"entries"`
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: dkcheck [flags] stream.json...")
		os.Exit(1)
	}

	var defCfg *dedukti.RunConfig
	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			fail(1, err)
		}
		defCfg, err = dedukti.LoadRunConfig(data)
		if err != nil {
			fail(1, err)
		}
	}

	for _, path := range flag.Args() {
		if err := runFile(path, defCfg); err != nil {
			os.Exit(exitCode(err))
		}
	}
	os.Exit(0)
}

type ioError struct{ err error }

func (e *ioError) Error() string { return e.err.Error() }

func runFile(path string, defCfg *dedukti.RunConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return report(&ioError{err})
	}
	var stream streamFile
	if err := json.Unmarshal(data, &stream); err != nil {
		return report(&ioError{fmt.Errorf("%s: %w", path, err)})
	}

	env := dedukti.NewEnv(stream.Module)
	env.LoadPath = strings.Split(*loadPath, ":")
	if !*quiet {
		env.Out = os.Stdout
	}
	for _, entry := range stream.Entries {
		if defCfg != nil && entry.Cfg == nil {
			entry.Cfg = defCfg
		}
		if err := env.Process(entry); err != nil {
			return report(fmt.Errorf("%s: %w", path, err))
		}
	}

	if *exportFile != "" {
		dump, err := dedukti.WriteSignatureDump(env.Signature())
		if err != nil {
			return report(err)
		}
		if err := os.WriteFile(*exportFile, dump, 0o644); err != nil {
			return report(&ioError{err})
		}
	}
	return nil
}

func report(err error) error {
	fmt.Fprintln(os.Stderr, err)
	return err
}

func fail(code int, err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(code)
}

func exitCode(err error) int {
	var ioe *ioError
	if errors.As(err, &ioe) {
		return 1
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if code := dedukti.ExitClass(e); code != 42 {
			return code
		}
	}
	return 42
}
