package checker

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/Mindburn-Labs/fuse/pkg/spec"
)

// policyCostLimit bounds evaluation so a hostile expression cannot stall the
// executor.
const policyCostLimit = 1_000_000

// bannedPolicyFunctions are the CEL functions whose results depend on the
// clock, randomness or locale.
var bannedPolicyFunctions = []string{
	"now", "timestamp", "duration", "random", "uuid",
	"getDate", "getDayOfMonth", "getDayOfWeek", "getDayOfYear", "getFullYear",
	"getHours", "getMilliseconds", "getMinutes", "getMonth", "getSeconds",
}

var bannedPolicyCall = regexp.MustCompile(`\b(` + strings.Join(bannedPolicyFunctions, "|") + `)\s*\(`)

var policyEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("constraints", cel.MapType(cel.StringType, cel.StringType)),
	)
})

// checkPolicy evaluates the CEL boolean in constraint "expression" against
// the system data and the spec's constraints.
func checkPolicy(s *spec.ComplianceSpec, data SystemData) Result {
	expr, ok := s.Constraints["expression"]
	if !ok || expr == "" {
		return Fail
	}
	allowed, err := evaluatePolicy(expr, data, s.Constraints)
	if err != nil {
		return Fail
	}
	return resultOf(allowed)
}

// ValidatePolicyExpression reports why expr cannot be used as a policy, or
// nil if it compiles to a deterministic boolean.
func ValidatePolicyExpression(expr string) error {
	_, err := compilePolicy(expr)
	return err
}

func compilePolicy(expr string) (cel.Program, error) {
	if m := bannedPolicyCall.FindStringSubmatch(expr); m != nil {
		return nil, fmt.Errorf("function %q is not allowed in policy expressions", m[1])
	}
	env, err := policyEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	prg, err := env.Program(ast, cel.CostLimit(policyCostLimit))
	if err != nil {
		return nil, fmt.Errorf("CEL program error: %w", err)
	}
	return prg, nil
}

func evaluatePolicy(expr string, data SystemData, constraints map[string]string) (bool, error) {
	prg, err := compilePolicy(expr)
	if err != nil {
		return false, err
	}

	if constraints == nil {
		constraints = map[string]string{}
	}
	out, _, err := prg.Eval(map[string]any{
		"data":        celValue(map[string]any(data)),
		"constraints": constraints,
	})
	if err != nil {
		return false, fmt.Errorf("CEL eval error: %w", err)
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("result not boolean")
	}
	return allowed, nil
}

// celValue converts decoded JSON numbers into CEL-native int or double.
func celValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = celValue(e)
		}
		return out
	case SystemData:
		return celValue(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = celValue(e)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int:
		return int64(t)
	default:
		return v
	}
}
