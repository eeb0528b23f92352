package executor

import (
	"github.com/moonsql/moonsql/internal/sql/lexer"
	"github.com/moonsql/moonsql/internal/sql/parser"
	"github.com/moonsql/moonsql/internal/sqlerr"
)

// ExecStatement runs a parsed statement through the remaining phases:
// semantic analysis, planning, execution.
func (e *Executor) ExecStatement(stmt parser.Statement) (*Result, *sqlerr.Error) {
	if serr := e.Analyze(stmt); serr != nil {
		return nil, serr
	}
	plan, serr := e.Plan(stmt)
	if serr != nil {
		return nil, serr
	}
	return e.ExecPlan(plan)
}

// ExecSQL is the top-level entry: SQL text in, results out, one per
// statement. The first error aborts the script.
func (e *Executor) ExecSQL(src string) ([]*Result, *sqlerr.Error) {
	toks, lexErrs := lexer.Lex(src)
	if len(lexErrs) > 0 {
		return nil, lexErrs[0]
	}
	stmts, parseErrs := parser.ParseScript(toks)
	if len(parseErrs) > 0 {
		return nil, parseErrs[0]
	}

	var results []*Result
	for _, stmt := range stmts {
		res, serr := e.ExecStatement(stmt)
		if serr != nil {
			return results, serr
		}
		results = append(results, res)
	}
	return results, nil
}
