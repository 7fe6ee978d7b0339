package auth

import "testing"

func TestGenerateNumericCode(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		code, err := GenerateNumericCode(8)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !IsNumericCode(code, 8) {
			t.Fatalf("code %q is not 8 digits", code)
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 45 {
		t.Fatalf("codes are not random enough: %d distinct of 50", len(seen))
	}

	if _, err := GenerateNumericCode(0); err == nil {
		t.Fatalf("expected error for zero length")
	}
}

func TestIsNumericCode(t *testing.T) {
	cases := map[string]bool{
		"12345678":  true,
		"00000000":  true,
		"1234567":   false,
		"123456789": false,
		"1234567a":  false,
		"":          false,
	}
	for code, want := range cases {
		if got := IsNumericCode(code, 8); got != want {
			t.Fatalf("IsNumericCode(%q) = %v", code, got)
		}
	}
}

func TestCodesEqual(t *testing.T) {
	if !CodesEqual("12345678", "12345678") {
		t.Fatalf("equal codes reported different")
	}
	if CodesEqual("12345678", "12345679") || CodesEqual("12345678", "1234567") {
		t.Fatalf("different codes reported equal")
	}
}
