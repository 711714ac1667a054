package vseries

import (
	"errors"
	"testing"
)

func Test_Eval_Resolves_Refs_And_Applies_Operators(t *testing.T) {
	n := Add{Ref{Slug: "a"}, Mul{Const{2}, Ref{Slug: "b"}}}

	resolver := func(slug string) (float64, error) {
		switch slug {
		case "a":
			return 10, nil
		case "b":
			return 5, nil
		}

		return 0, errors.New("unknown ref")
	}

	got, err := Eval(n, resolver)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}

	if got != 20 {
		t.Errorf("Eval() = %v, want 20", got)
	}
}

func Test_Eval_Division_By_Zero_Is_An_Error(t *testing.T) {
	n := Div{Const{1}, Const{0}}

	_, err := Eval(n, func(string) (float64, error) { return 0, nil })
	if err == nil {
		t.Fatal("expected division-by-zero error, got nil")
	}
}

func Test_Eval_Propagates_Resolver_Error(t *testing.T) {
	n := Ref{Slug: "missing"}
	wantErr := errors.New("no such series")

	_, err := Eval(n, func(string) (float64, error) { return 0, wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapping %v", err, wantErr)
	}
}

func Test_Eval_Neg(t *testing.T) {
	got, err := Eval(Neg{Const{3}}, nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}

	if got != -3 {
		t.Errorf("Eval() = %v, want -3", got)
	}
}

func Test_Refs_Deduplicates_And_Preserves_First_Occurrence_Order(t *testing.T) {
	n := Add{Ref{Slug: "a"}, Sub{Ref{Slug: "b"}, Ref{Slug: "a"}}}

	got := Refs(n)
	want := []string{"a", "b"}

	if len(got) != len(want) {
		t.Fatalf("Refs() = %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Refs() = %v, want %v", got, want)
		}
	}
}
