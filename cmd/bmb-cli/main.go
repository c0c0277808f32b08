// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"

	"bmb/internal/ast"
	"bmb/internal/mir"
	"bmb/internal/pipeline"
	"bmb/internal/smt"
	"bmb/internal/verify"
)

func main() {
	level := flag.String("opt", "release", "optimization level: debug, release, aggressive")
	solverPath := flag.String("solver", "z3", "SMT solver binary")
	timeout := flag.Duration("timeout", 10*time.Second, "per-obligation solver timeout")
	deny := flag.Bool("deny-unverified", false, "fail the build when verification fails")
	emitMIR := flag.Bool("emit-mir", false, "print the optimized MIR")
	jsonReport := flag.Bool("json", false, "render the verification report as JSON")
	proofDB := flag.String("proof-db", "", "path of the cross-run proof database")
	selfCheck := flag.Bool("self-check", false, "run the MIR checker after every pass")
	dumpDir := flag.String("dump-smt", "", "also write solver scripts to this directory")
	verbosity := flag.Int("v", 0, "log verbosity")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: bmb-cli [flags] <program.ast.json>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	commonlog.Configure(*verbosity, nil)

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		color.Red("Failed to read input: %s", err)
		os.Exit(1)
	}
	program, err := ast.DecodeProgram(data)
	if err != nil {
		color.Red("Failed to decode program: %s", err)
		os.Exit(1)
	}

	solver := smt.NewSolver().WithPath(*solverPath).WithTimeout(*timeout)
	if *dumpDir != "" {
		solver = solver.WithDumpDir(*dumpDir)
	}

	driver := pipeline.NewDriver(solver).
		WithOptLevel(parseLevel(*level)).
		WithDenyUnverified(*deny).
		WithSelfCheck(*selfCheck)

	if *proofDB != "" {
		db, err := verify.OpenProofDatabase(*proofDB)
		if err != nil {
			color.Red("Failed to open proof database: %s", err)
			os.Exit(1)
		}
		defer db.Close()
		driver = driver.WithProofDatabase(db)
	}

	result, err := driver.Run(context.Background(), program)
	if result != nil && result.Report != nil {
		renderReport(result.Report, *jsonReport)
	}
	if err != nil {
		color.Red("%s", err)
		os.Exit(1)
	}

	if *emitMIR {
		fmt.Print(mir.Print(result.Program))
	}
}

func parseLevel(s string) mir.OptLevel {
	switch s {
	case "debug":
		return mir.OptDebug
	case "aggressive":
		return mir.OptAggressive
	default:
		return mir.OptRelease
	}
}

func renderReport(report *verify.Report, asJSON bool) {
	if asJSON {
		data, err := report.RenderJSON()
		if err != nil {
			color.Red("Failed to render report: %s", err)
			return
		}
		fmt.Println(string(data))
		return
	}
	fmt.Print(report.Render())
}
