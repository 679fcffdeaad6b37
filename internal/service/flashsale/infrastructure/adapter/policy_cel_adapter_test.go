// internal/service/flashsale/infrastructure/adapter/policy_cel_adapter_test.go
package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsecart/internal/service/flashsale/domain"
)

func TestCELPolicyAllowsAndRejects(t *testing.T) {
	policy, err := NewCELPolicy("quantity > 0 && quantity <= 5")
	require.NoError(t, err)

	allowed := domain.NewPurchaseIntent("p-1", 3, "u-1")
	assert.NoError(t, policy.Evaluate(context.Background(), allowed))

	tooMany := domain.NewPurchaseIntent("p-1", 6, "u-1")
	err = policy.Evaluate(context.Background(), tooMany)
	assert.ErrorIs(t, err, domain.ErrPolicyViolation)
}

func TestCELPolicyCanReferenceAllVariables(t *testing.T) {
	policy, err := NewCELPolicy(`productId != "banned" && requesterId != "" && quantity <= 10`)
	require.NoError(t, err)

	assert.NoError(t, policy.Evaluate(context.Background(), domain.NewPurchaseIntent("p-1", 1, "u-1")))
	assert.ErrorIs(t, policy.Evaluate(context.Background(), domain.NewPurchaseIntent("banned", 1, "u-1")), domain.ErrPolicyViolation)
	assert.ErrorIs(t, policy.Evaluate(context.Background(), domain.NewPurchaseIntent("p-1", 1, "")), domain.ErrPolicyViolation)
}

func TestCELPolicyRejectsBadExpressions(t *testing.T) {
	// 语法错误
	_, err := NewCELPolicy("quantity >")
	assert.Error(t, err)

	// 类型错误：表达式必须产出 bool
	_, err = NewCELPolicy("quantity + 1")
	assert.Error(t, err)

	// 未声明的变量
	_, err = NewCELPolicy("userLevel > 3")
	assert.Error(t, err)
}
