// Package rule 用 CEL 表达式描述可配置的经济规则。
package rule

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"vault/internal/service/economy/domain"
)

// DefaultPayoutExpression 与内置回收比例一致
const DefaultPayoutExpression = "rare ? price * 4 / 5 : price / 2"

// CELPayoutPolicy 实现了 port.PayoutPolicy 接口。
// 表达式可以读取 price (int) 和 rare (bool)，必须返回 int。
type CELPayoutPolicy struct {
	expr    string
	program cel.Program
}

// NewCELPayoutPolicy 在启动时编译表达式，语法或类型错误会立即返回。
func NewCELPayoutPolicy(expr string) (*CELPayoutPolicy, error) {
	if expr == "" {
		expr = DefaultPayoutExpression
	}
	env, err := cel.NewEnv(
		cel.Variable("price", cel.IntType),
		cel.Variable("rare", cel.BoolType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}
	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "compile payout expression %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.IntType) {
		return nil, errors.Errorf("payout expression %q must return int, got %s", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "build payout program")
	}
	return &CELPayoutPolicy{expr: expr, program: prg}, nil
}

// UnitPayout 计算单个礼物的回收价，结果必须落在 [0, price] 内。
func (p *CELPayoutPolicy) UnitPayout(price int64, rare bool) (int64, error) {
	out, _, err := p.program.Eval(map[string]interface{}{
		"price": price,
		"rare":  rare,
	})
	if err != nil {
		return 0, errors.Wrapf(err, "evaluate payout expression %q", p.expr)
	}
	v, ok := out.Value().(int64)
	if !ok {
		return 0, errors.Errorf("payout expression %q returned %T", p.expr, out.Value())
	}
	if v < 0 || v > price {
		return 0, errors.Wrapf(domain.ErrValidation, "payout %d out of range for price %d", v, price)
	}
	return v, nil
}
