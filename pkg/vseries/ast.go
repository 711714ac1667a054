package vseries

import "fmt"

// Node is one node of a parsed equation AST.
type Node interface {
	isNode()
}

// Ref is a leaf referencing a named series by slug.
type Ref struct {
	Slug string
}

// Const is a leaf constant value.
type Const struct {
	Value float64
}

// Add is a + b.
type Add struct{ Left, Right Node }

// Sub is a - b.
type Sub struct{ Left, Right Node }

// Mul is a * b.
type Mul struct{ Left, Right Node }

// Div is a / b.
type Div struct{ Left, Right Node }

// Neg is -a.
type Neg struct{ Operand Node }

func (Ref) isNode() {}
func (Const) isNode() {}
func (Add) isNode() {}
func (Sub) isNode() {}
func (Mul) isNode() {}
func (Div) isNode() {}
func (Neg) isNode() {}

// Resolver looks up a series' reading at an instant, identified opaquely
// by whatever time representation the caller's Reader uses (ringdb.Series
// readings are looked up by the caller before Eval is invoked; Resolver
// abstracts that so this package has no dependency on pkg/ringdb).
type Resolver func(slug string) (float64, error)

// Eval evaluates an AST node against resolver, which supplies the current
// reading for any Ref leaf encountered.
func Eval(n Node, resolver Resolver) (float64, error) {
	switch v := n.(type) {
	case Ref:
		return resolver(v.Slug)
	case Const:
		return v.Value, nil
	case Add:
		l, err := Eval(v.Left, resolver)
		if err != nil {
			return 0, err
		}

		r, err := Eval(v.Right, resolver)
		if err != nil {
			return 0, err
		}

		return l + r, nil
	case Sub:
		l, err := Eval(v.Left, resolver)
		if err != nil {
			return 0, err
		}

		r, err := Eval(v.Right, resolver)
		if err != nil {
			return 0, err
		}

		return l - r, nil
	case Mul:
		l, err := Eval(v.Left, resolver)
		if err != nil {
			return 0, err
		}

		r, err := Eval(v.Right, resolver)
		if err != nil {
			return 0, err
		}

		return l * r, nil
	case Div:
		l, err := Eval(v.Left, resolver)
		if err != nil {
			return 0, err
		}

		r, err := Eval(v.Right, resolver)
		if err != nil {
			return 0, err
		}

		if r == 0 {
			return 0, fmt.Errorf("vseries: division by zero")
		}

		return l / r, nil
	case Neg:
		operand, err := Eval(v.Operand, resolver)
		if err != nil {
			return 0, err
		}

		return -operand, nil
	default:
		return 0, fmt.Errorf("vseries: unknown node type %T", n)
	}
}

// Refs returns every series slug referenced anywhere in the AST, in
// first-encountered order, deduplicated.
func Refs(n Node) []string {
	seen := map[string]bool{}
	var out []string

	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case Ref:
			if !seen[v.Slug] {
				seen[v.Slug] = true
				out = append(out, v.Slug)
			}
		case Const:
		case Add:
			walk(v.Left)
			walk(v.Right)
		case Sub:
			walk(v.Left)
			walk(v.Right)
		case Mul:
			walk(v.Left)
			walk(v.Right)
		case Div:
			walk(v.Left)
			walk(v.Right)
		case Neg:
			walk(v.Operand)
		}
	}

	walk(n)

	return out
}
