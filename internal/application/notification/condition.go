package notification

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"

	domainNotification "github.com/sponnect/sponnect/internal/domain/notification"
)

// compiledRule is a routing rule with its parsed expression. A nil expr
// matches every event.
type compiledRule struct {
	domainNotification.Rule
	expr *govaluate.EvaluableExpression
}

func compileRules(rules []domainNotification.Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledRule{Rule: r}
		cond := strings.TrimSpace(r.Condition)
		if cond != "" && !strings.EqualFold(cond, "true") {
			expr, err := govaluate.NewEvaluableExpression(cond)
			if err != nil {
				return nil, fmt.Errorf("notification rule %q: %w", r.Name, err)
			}
			cr.expr = expr
		}
		out = append(out, cr)
	}
	return out, nil
}

// matches evaluates the rule against event parameters.
func (r compiledRule) matches(params map[string]interface{}) (bool, error) {
	if r.expr == nil {
		return true, nil
	}
	result, err := r.expr.Evaluate(params)
	if err != nil {
		return false, err
	}
	v, ok := result.(bool)
	if !ok {
		return false, errors.New("condition did not evaluate to boolean")
	}
	return v, nil
}
