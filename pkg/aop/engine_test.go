package aop_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwantia/assemblage/pkg/aop"
)

type Calculator struct{ calls int }

func (c *Calculator) Add(a, b int) int {
	c.calls++
	return a + b
}

func (c *Calculator) Fail() error {
	c.calls++
	return errors.New("calculator broken")
}

func newEngineWith(t *testing.T, target any, transversals ...aop.Transversal) *aop.Engine {
	t.Helper()

	engine := aop.NewEngine()
	for _, transversal := range transversals {
		require.NoError(t, engine.Register(transversal))
	}
	engine.Install(target)
	return engine
}

func TestInvokeWithoutAdvice(t *testing.T) {
	t.Parallel()

	calc := &Calculator{}
	engine := aop.NewEngine()

	result, err := engine.Invoke(calc, "Add", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, result)
	assert.Equal(t, 1, calc.calls)

	_, err = engine.Invoke(calc, "Missing")
	var unknown aop.UnknownMethodError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Calculator", unknown.Class)
}

func TestBeforePriorityOrdering(t *testing.T) {
	t.Parallel()

	var order []int
	calc := &Calculator{}
	engine := newEngineWith(t, calc, aop.Transversal{
		Name: "ordering",
		Advices: []aop.Advice{
			aop.Before("execution(Calculator.Add)", 50, func(inv *aop.Invocation) error {
				order = append(order, 50)
				return nil
			}),
			aop.Before("execution(Calculator.Add)", 100, func(inv *aop.Invocation) error {
				order = append(order, 100)
				return nil
			}),
		},
	})

	_, err := engine.Invoke(calc, "Add", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 50}, order)
}

func TestBeforeMutatesArgs(t *testing.T) {
	t.Parallel()

	calc := &Calculator{}
	engine := newEngineWith(t, calc, aop.Transversal{
		Name: "doubling",
		Advices: []aop.Advice{
			aop.Before("execution(Calculator.Add)", 0, func(inv *aop.Invocation) error {
				inv.Args = []any{inv.Args[0].(int) * 2, inv.Args[1].(int) * 2}
				return nil
			}),
		},
	})

	result, err := engine.Invoke(calc, "Add", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, result)
}

func TestBeforeErrorAbortsChain(t *testing.T) {
	t.Parallel()

	var afterRan bool
	calc := &Calculator{}
	engine := newEngineWith(t, calc, aop.Transversal{
		Name: "guard",
		Advices: []aop.Advice{
			aop.Before("execution(Calculator.Add)", 0, func(inv *aop.Invocation) error {
				return errors.New("denied")
			}),
			aop.After("execution(Calculator.Add)", 0, func(inv *aop.Invocation) {
				afterRan = true
			}),
		},
	})

	_, err := engine.Invoke(calc, "Add", 1, 1)
	require.EqualError(t, err, "denied")
	assert.Zero(t, calc.calls)
	assert.False(t, afterRan)
}

func TestAroundComposition(t *testing.T) {
	t.Parallel()

	var order []string
	calc := &Calculator{}
	engine := newEngineWith(t, calc, aop.Transversal{
		Name: "wrapping",
		Advices: []aop.Advice{
			aop.Around("execution(Calculator.Add)", 10, func(inv *aop.Invocation) (any, error) {
				order = append(order, "inner:start")
				result, err := inv.Proceed()
				order = append(order, "inner:end")
				return result, err
			}),
			aop.Around("execution(Calculator.Add)", 90, func(inv *aop.Invocation) (any, error) {
				order = append(order, "outer:start")
				result, err := inv.Proceed()
				order = append(order, "outer:end")
				return result.(int) + 100, err
			}),
		},
	})

	result, err := engine.Invoke(calc, "Add", 2, 3)
	require.NoError(t, err)

	// Higher priority composes outermost; its return replaces the result.
	assert.Equal(t, 105, result)
	assert.Equal(t, []string{"outer:start", "inner:start", "inner:end", "outer:end"}, order)
}

func TestAroundShortCircuit(t *testing.T) {
	t.Parallel()

	var innerRan bool
	calc := &Calculator{}
	engine := newEngineWith(t, calc, aop.Transversal{
		Name: "cache",
		Advices: []aop.Advice{
			aop.Around("execution(Calculator.Add)", 90, func(inv *aop.Invocation) (any, error) {
				return 42, nil
			}),
			aop.Around("execution(Calculator.Add)", 10, func(inv *aop.Invocation) (any, error) {
				innerRan = true
				return inv.Proceed()
			}),
		},
	})

	result, err := engine.Invoke(calc, "Add", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.False(t, innerRan)
	assert.Zero(t, calc.calls)
}

func TestAfterSeesFinalResult(t *testing.T) {
	t.Parallel()

	var observed any
	calc := &Calculator{}
	engine := newEngineWith(t, calc, aop.Transversal{
		Name: "observe",
		Advices: []aop.Advice{
			aop.Around("execution(Calculator.Add)", 50, func(inv *aop.Invocation) (any, error) {
				result, err := inv.Proceed()
				if err != nil {
					return nil, err
				}
				return result.(int) * 10, nil
			}),
			aop.After("execution(Calculator.Add)", 0, func(inv *aop.Invocation) {
				observed = inv.Result
			}),
		},
	})

	result, err := engine.Invoke(calc, "Add", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 50, result)
	assert.Equal(t, 50, observed)
}

func TestMethodErrorPropagates(t *testing.T) {
	t.Parallel()

	var afterRan bool
	calc := &Calculator{}
	engine := newEngineWith(t, calc, aop.Transversal{
		Name: "errors",
		Advices: []aop.Advice{
			aop.After("execution(Calculator.Fail)", 0, func(inv *aop.Invocation) {
				afterRan = true
			}),
		},
	})

	_, err := engine.Invoke(calc, "Fail")
	require.EqualError(t, err, "calculator broken")
	assert.Equal(t, 1, calc.calls)
	assert.False(t, afterRan)
}

func TestRegisterInvalidPointcut(t *testing.T) {
	t.Parallel()

	engine := aop.NewEngine()
	err := engine.Register(aop.Transversal{
		Name: "broken",
		Advices: []aop.Advice{
			aop.Before("Calculator.Add", 0, func(inv *aop.Invocation) error { return nil }),
		},
	})

	var invalid aop.InvalidPointcutError
	require.ErrorAs(t, err, &invalid)
}

func TestReset(t *testing.T) {
	t.Parallel()

	var intercepted int
	calc := &Calculator{}
	engine := newEngineWith(t, calc, aop.Transversal{
		Name: "counting",
		Advices: []aop.Advice{
			aop.Before("execution(Calculator.Add)", 0, func(inv *aop.Invocation) error {
				intercepted++
				return nil
			}),
		},
	})

	_, err := engine.Invoke(calc, "Add", 1, 1)
	require.NoError(t, err)
	require.Equal(t, 1, intercepted)
	require.True(t, engine.Intercepts(calc, "Add"))

	engine.Reset()
	assert.False(t, engine.Intercepts(calc, "Add"))

	result, err := engine.Invoke(calc, "Add", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result)
	assert.Equal(t, 1, intercepted)
}
