package pdp

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/gezibash/arc-contract/internal/policy"
)

// CELConstraintType is the @type of constraints evaluated as CEL expressions:
//
//	{"@type": "cel", "expression": "ctx.purpose == 'research' && action == 'use'"}
//
// The expression sees the request as action, target and ctx.
const CELConstraintType = "cel"

// CELExtension evaluates CEL constraints. Compiled programs are cached by
// expression text.
type CELExtension struct {
	env   *cel.Env
	cache sync.Map // map[string]cel.Program
}

// NewCELExtension creates the CEL environment for request evaluation.
func NewCELExtension() (*CELExtension, error) {
	env, err := cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("target", cel.StringType),
		cel.Variable("ctx", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	return &CELExtension{env: env}, nil
}

// Compile parses and checks an expression, caching the program.
func (x *CELExtension) Compile(expr string) (cel.Program, error) {
	if cached, ok := x.cache.Load(expr); ok {
		return cached.(cel.Program), nil
	}

	ast, issues := x.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel compile: %w", issues.Err())
	}

	prg, err := x.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel program: %w", err)
	}
	x.cache.Store(expr, prg)
	return prg, nil
}

// Satisfied returns false on a missing expression, compile error, evaluation
// error or non-boolean result.
func (x *CELExtension) Satisfied(c policy.Constraint, req Request) bool {
	raw, ok := c.Field("expression")
	if !ok {
		return false
	}
	expr, ok := raw.(string)
	if !ok || expr == "" {
		return false
	}

	prg, err := x.Compile(expr)
	if err != nil {
		return false
	}

	ctx := req.Context
	if ctx == nil {
		ctx = map[string]any{}
	}
	out, _, err := prg.Eval(map[string]any{
		"action": req.Action,
		"target": req.Target,
		"ctx":    ctx,
	})
	if err != nil {
		return false
	}
	if out.Type() != types.BoolType {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
