package vseries

import "fmt"

// ErrCycle is returned when flattening discovers a slug already on the
// current substitution stack.
type ErrCycle struct {
	Slug string
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("vseries: cycle detected at %q", e.Slug)
}

// Registry looks up the parsed equation for a virtual series by slug. It
// returns ok=false for a slug that names a real (non-virtual) series,
// which flatten leaves as a Ref leaf.
type Registry func(slug string) (eq Node, ok bool)

// Flatten substitutes every virtual-series Ref in n with its own equation,
// recursively, until only real-series Refs and Consts remain. It rejects
// cycles in the reference graph.
func Flatten(n Node, registry Registry) (Node, error) {
	return flatten(n, registry, map[string]bool{})
}

func flatten(n Node, registry Registry, stack map[string]bool) (Node, error) {
	switch v := n.(type) {
	case Ref:
		eq, ok := registry(v.Slug)
		if !ok {
			return v, nil
		}

		if stack[v.Slug] {
			return nil, &ErrCycle{Slug: v.Slug}
		}

		stack[v.Slug] = true
		defer delete(stack, v.Slug)

		return flatten(eq, registry, stack)
	case Const:
		return v, nil
	case Add:
		return flattenBinary(v.Left, v.Right, registry, stack, func(l, r Node) Node { return Add{l, r} })
	case Sub:
		return flattenBinary(v.Left, v.Right, registry, stack, func(l, r Node) Node { return Sub{l, r} })
	case Mul:
		return flattenBinary(v.Left, v.Right, registry, stack, func(l, r Node) Node { return Mul{l, r} })
	case Div:
		return flattenBinary(v.Left, v.Right, registry, stack, func(l, r Node) Node { return Div{l, r} })
	case Neg:
		operand, err := flatten(v.Operand, registry, stack)
		if err != nil {
			return nil, err
		}

		return Neg{operand}, nil
	default:
		return nil, fmt.Errorf("vseries: unknown node type %T", n)
	}
}

func flattenBinary(left, right Node, registry Registry, stack map[string]bool, combine func(l, r Node) Node) (Node, error) {
	l, err := flatten(left, registry, stack)
	if err != nil {
		return nil, err
	}

	r, err := flatten(right, registry, stack)
	if err != nil {
		return nil, err
	}

	return combine(l, r), nil
}
