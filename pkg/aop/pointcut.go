// Package aop implements the transversal engine: pointcut parsing, advice
// registration, and before/after/around chains executed around intercepted
// method calls.
//
// The engine does not patch method tables. Calls that should be advised flow
// through an invocation facade (Engine.Invoke) that consults the per-target
// advice table by method name, so the original methods remain callable
// directly when no interception is wanted.
package aop

import (
	"strings"
)

// Pointcut is a compiled "execution(ClassName.methodPattern)" expression.
// The method pattern is either an identifier or "*", which matches any
// method name on the class.
type Pointcut struct {
	expr   string
	class  string
	method string
}

// ParsePointcut compiles a pointcut expression. Unknown grammar forms fail
// with InvalidPointcutError.
func ParsePointcut(expr string) (*Pointcut, error) {
	trimmed := strings.TrimSpace(expr)

	body, found := strings.CutPrefix(trimmed, "execution(")
	if !found {
		return nil, InvalidPointcutError{Expr: expr, Reason: "expected execution(...)"}
	}
	body, found = strings.CutSuffix(body, ")")
	if !found {
		return nil, InvalidPointcutError{Expr: expr, Reason: "missing closing parenthesis"}
	}

	class, method, found := strings.Cut(body, ".")
	if !found {
		return nil, InvalidPointcutError{Expr: expr, Reason: "expected ClassName.methodPattern"}
	}

	if !isIdentifier(class) {
		return nil, InvalidPointcutError{Expr: expr, Reason: "invalid class name"}
	}
	if method != "*" && !isIdentifier(method) {
		return nil, InvalidPointcutError{Expr: expr, Reason: "invalid method pattern"}
	}

	return &Pointcut{expr: trimmed, class: class, method: method}, nil
}

// Matches reports whether the pointcut selects the (class, method) pair.
func (p *Pointcut) Matches(class, method string) bool {
	if p.class != class {
		return false
	}
	return p.method == "*" || p.method == method
}

// MatchesClass reports whether the pointcut can select any method on the class.
func (p *Pointcut) MatchesClass(class string) bool {
	return p.class == class
}

// String returns the original expression.
func (p *Pointcut) String() string {
	return p.expr
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		letter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		digit := r >= '0' && r <= '9'
		if !letter && (i == 0 || !digit) {
			return false
		}
	}
	return true
}
