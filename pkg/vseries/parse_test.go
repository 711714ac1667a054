package vseries

import "testing"

func evalConst(t *testing.T, n Node) float64 {
	t.Helper()

	v, err := Eval(n, func(string) (float64, error) { return 0, nil })
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}

	return v
}

func Test_Parse_Respects_Operator_Precedence(t *testing.T) {
	n, err := Parse("2 + 3 * 4")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := evalConst(t, n); got != 14 {
		t.Errorf("eval = %v, want 14", got)
	}
}

func Test_Parse_Parentheses_Override_Precedence(t *testing.T) {
	n, err := Parse("(2 + 3) * 4")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := evalConst(t, n); got != 20 {
		t.Errorf("eval = %v, want 20", got)
	}
}

func Test_Parse_Unary_Minus(t *testing.T) {
	n, err := Parse("-5 + 2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := evalConst(t, n); got != -3 {
		t.Errorf("eval = %v, want -3", got)
	}
}

func Test_Parse_Series_Refs_With_Punctuation_In_Slug(t *testing.T) {
	n, err := Parse("host:cpu.load - host:cpu.idle")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	refs := Refs(n)
	if len(refs) != 2 || refs[0] != "host:cpu.load" || refs[1] != "host:cpu.idle" {
		t.Errorf("Refs() = %v, want [host:cpu.load host:cpu.idle]", refs)
	}
}

func Test_Parse_Rejects_Unbalanced_Parens(t *testing.T) {
	_, err := Parse("(1 + 2")
	if err == nil {
		t.Fatal("expected error for unbalanced parens, got nil")
	}
}

func Test_Parse_Rejects_Trailing_Garbage(t *testing.T) {
	_, err := Parse("1 + 2 3")
	if err == nil {
		t.Fatal("expected error for trailing token, got nil")
	}
}

func Test_Parse_Rejects_Empty_Input(t *testing.T) {
	_, err := Parse("")
	if err == nil {
		t.Fatal("expected error for empty input, got nil")
	}
}
