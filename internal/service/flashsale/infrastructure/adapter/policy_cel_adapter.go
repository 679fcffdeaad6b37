// internal/service/flashsale/infrastructure/adapter/policy_cel_adapter.go
package adapter

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"pulsecart/internal/service/flashsale/domain"
)

// CELPolicy 是 port.PurchasePolicy 的 CEL 实现。
// 准入规则用一条 CEL 表达式配置，例如:
//
//	quantity > 0 && quantity <= 5
//
// 运营侧改限购规则只需要改配置，不需要发版。
type CELPolicy struct {
	program    cel.Program
	expression string
}

// NewCELPolicy 编译表达式。规则本身有语法错误属于配置错误，启动即失败。
func NewCELPolicy(expression string) (*CELPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("productId", cel.StringType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("requesterId", cel.StringType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create CEL environment")
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "invalid policy expression %q", expression)
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy expression %q must evaluate to bool, got %s", expression, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build CEL program")
	}

	return &CELPolicy{program: program, expression: expression}, nil
}

// Evaluate 实现 port.PurchasePolicy。
func (p *CELPolicy) Evaluate(_ context.Context, intent *domain.PurchaseIntent) error {
	out, _, err := p.program.Eval(map[string]interface{}{
		"productId":   intent.ProductID,
		"quantity":    intent.Quantity,
		"requesterId": intent.RequesterID,
	})
	if err != nil {
		return errors.Wrap(err, "policy evaluation failed")
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return fmt.Errorf("policy expression %q returned non-bool value", p.expression)
	}
	if !allowed {
		return errors.Wrapf(domain.ErrPolicyViolation, "rule %q", p.expression)
	}
	return nil
}
