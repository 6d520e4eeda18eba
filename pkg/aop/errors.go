package aop

import "strconv"

// InvalidPointcutError is returned when a pointcut expression fails the
// grammar.
type InvalidPointcutError struct {
	Expr   string
	Reason string
}

// Error implements the error interface.
func (e InvalidPointcutError) Error() string {
	// Example: aop: invalid pointcut "execution(Foo)": expected ClassName.methodPattern
	return "aop: invalid pointcut " + strconv.Quote(e.Expr) + ": " + e.Reason
}

// UnknownMethodError is returned by Invoke when the target has no method of
// the given name.
type UnknownMethodError struct {
	Class  string
	Method string
}

// Error implements the error interface.
func (e UnknownMethodError) Error() string {
	return "aop: " + e.Class + " has no method " + strconv.Quote(e.Method)
}
