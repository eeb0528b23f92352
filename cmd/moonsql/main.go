// Command moonsql is the interactive front end: a readline REPL or a
// script runner, with --show views into every compiler phase.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/pflag"

	"github.com/moonsql/moonsql/internal"
	"github.com/moonsql/moonsql/internal/engine"
	"github.com/moonsql/moonsql/internal/sql/executor"
	"github.com/moonsql/moonsql/internal/sql/lexer"
	"github.com/moonsql/moonsql/internal/sql/parser"
	"github.com/moonsql/moonsql/internal/sql/planner"
	"github.com/moonsql/moonsql/internal/sqlerr"
)

const (
	exitOK      = 0
	exitIO      = 1
	exitCompile = 2
	exitRuntime = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	dataDir := pflag.String("data-dir", "", "working directory for database files (overrides config)")
	cfgPath := pflag.String("config", "", "path to YAML config file")
	show := pflag.String("show", "result", "artifact to print: token|ast|sem|plan|result")
	scriptPath := pflag.String("file", "", "SQL script to execute instead of the REPL")
	pflag.Parse()

	switch *show {
	case "token", "ast", "sem", "plan", "result":
	default:
		fmt.Fprintf(os.Stderr, "unknown --show value %q\n", *show)
		return exitIO
	}

	cfg, err := internal.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIO
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	db, err := engine.Open(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIO
	}
	defer db.Close()

	sess := &session{db: db, exec: executor.NewExecutor(db), show: *show}

	if *scriptPath != "" {
		src, err := os.ReadFile(*scriptPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitIO
		}
		return sess.runScript(string(src))
	}
	return sess.repl()
}

type session struct {
	db   *engine.Database
	exec *executor.Executor
	show string
}

// runScript executes every statement in src, printing the requested
// artifact for each. Lexical errors are all reported, then the script
// stops before any statement runs; past parse and semantic errors it
// keeps going. It returns the exit code of the first failure seen.
func (s *session) runScript(src string) int {
	code := exitOK

	toks, lexErrs := lexer.Lex(src)
	for _, e := range lexErrs {
		fmt.Fprintln(os.Stderr, e.JSON())
		code = worst(code, exitCompile)
	}
	if s.show == "token" {
		printTokens(toks)
		return code
	}
	if len(lexErrs) > 0 {
		return code
	}

	stmts, parseErrs := parser.ParseScript(toks)
	for _, e := range parseErrs {
		fmt.Fprintln(os.Stderr, e.JSON())
		code = worst(code, exitCompile)
	}

	for _, stmt := range stmts {
		if c := s.runStatement(stmt); c != exitOK {
			code = worst(code, c)
		}
	}
	return code
}

// runStatement pushes one parsed statement through the remaining
// phases, stopping at the phase --show selects.
func (s *session) runStatement(stmt parser.Statement) int {
	if s.show == "ast" {
		fmt.Println(parser.Dump(stmt))
		return exitOK
	}

	if serr := s.exec.Analyze(stmt); serr != nil {
		fmt.Fprintln(os.Stderr, serr.JSON())
		return exitCompile
	}
	if s.show == "sem" {
		fmt.Println("OK")
		return exitOK
	}

	plan, serr := s.exec.Plan(stmt)
	if serr != nil {
		fmt.Fprintln(os.Stderr, serr.JSON())
		return exitCode(serr)
	}
	if s.show == "plan" {
		fmt.Println(planner.ToJSON(plan))
		return exitOK
	}

	res, serr := s.exec.ExecPlan(plan)
	if serr != nil {
		fmt.Fprintln(os.Stderr, serr.JSON())
		return exitCode(serr)
	}
	printResult(res)
	return exitOK
}

func (s *session) repl() int {
	rl, err := readline.New("moonsql> ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIO
	}
	defer rl.Close()

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			buf.Reset()
			rl.SetPrompt("moonsql> ")
			continue
		}
		if err == io.EOF {
			return exitOK
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitIO
		}

		trimmed := strings.TrimSpace(line)
		if buf.Len() == 0 && strings.HasPrefix(trimmed, `\`) {
			if s.metaCommand(trimmed) {
				return exitOK
			}
			continue
		}

		buf.WriteString(line)
		buf.WriteString("\n")
		// Keep reading until the statement terminator.
		if !strings.Contains(line, ";") {
			rl.SetPrompt("      -> ")
			continue
		}

		s.runScript(buf.String())
		buf.Reset()
		rl.SetPrompt("moonsql> ")
	}
}

// metaCommand handles the backslash commands; true means quit.
func (s *session) metaCommand(cmd string) bool {
	switch cmd {
	case `\quit`, `\q`:
		return true
	case `\stats`:
		st := s.db.Stats()
		fmt.Printf("policy=%s hits=%d misses=%d evictions=%d hit_ratio=%.3f\n",
			st.Policy, st.Hits, st.Misses, st.Evictions, st.HitRatio)
	case `\tables`:
		names, err := s.db.ListTables()
		if err != nil {
			fmt.Fprintln(os.Stderr, sqlerr.From(err).JSON())
			return false
		}
		for _, n := range names {
			fmt.Println(n)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %s\n", cmd)
	}
	return false
}

// ---- output helpers ----

func printTokens(toks []lexer.Token) {
	for _, t := range toks {
		if t.Type == lexer.EOF {
			break
		}
		fmt.Println(t)
	}
}

func printResult(res *executor.Result) {
	if res.Columns == nil {
		fmt.Printf("OK (%d)\n", res.AffectedRows)
		return
	}

	widths := make([]int, len(res.Columns))
	for i, c := range res.Columns {
		widths[i] = len(c)
	}
	cells := make([][]string, len(res.Rows))
	for r, row := range res.Rows {
		cells[r] = make([]string, len(row))
		for i, v := range row {
			cells[r][i] = formatValue(v)
			if len(cells[r][i]) > widths[i] {
				widths[i] = len(cells[r][i])
			}
		}
	}

	printRow(res.Columns, widths)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	printRow(sep, widths)
	for _, row := range cells {
		printRow(row, widths)
	}
	fmt.Printf("(%d rows)\n", len(res.Rows))
}

func printRow(cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], c)
	}
	fmt.Println(strings.TrimRight(strings.Join(parts, " | "), " "))
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	switch x := v.(type) {
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func exitCode(e *sqlerr.Error) int {
	switch e.Phase {
	case sqlerr.PhaseLex, sqlerr.PhaseParse, sqlerr.PhaseSem:
		return exitCompile
	case sqlerr.PhaseStorage:
		return exitIO
	default:
		return exitRuntime
	}
}

func worst(a, b int) int {
	if a == exitOK {
		return b
	}
	return a
}
