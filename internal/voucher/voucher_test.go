package voucher

import (
	"strings"
	"testing"
)

func TestIssuer_Generate(t *testing.T) {
	t.Parallel()

	issuer := NewIssuer()

	t.Run("format and alphabet", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			code, err := issuer.Generate()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.HasPrefix(code, "FD-") {
				t.Fatalf("expected FD- prefix, got %q", code)
			}
			if len(code) != len("FD-")+codeLength {
				t.Fatalf("unexpected code length: %q", code)
			}
			for _, r := range code[len("FD-"):] {
				if !strings.ContainsRune(alphabet, r) {
					t.Fatalf("character %q outside alphabet in %q", r, code)
				}
			}
			for _, confusable := range "0O1I" {
				if strings.ContainsRune(code[len("FD-"):], confusable) {
					t.Fatalf("confusable character %q in %q", confusable, code)
				}
			}
		}
	})

	t.Run("codes are not repeated across a small sample", func(t *testing.T) {
		seen := make(map[string]struct{}, 1000)
		for i := 0; i < 1000; i++ {
			code, err := issuer.Generate()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if _, dup := seen[code]; dup {
				t.Fatalf("duplicate code generated: %q", code)
			}
			seen[code] = struct{}{}
		}
	})
}
