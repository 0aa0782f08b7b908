package env

import "testing"

func TestGetFallsBackOnBlank(t *testing.T) {
	t.Setenv("FASHIONSTORE_TEST_VALUE", "   ")
	if got := Get("FASHIONSTORE_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("FASHIONSTORE_TEST_VALUE", "console")
	if got := Get("FASHIONSTORE_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("FASHIONSTORE_TEST_FLAG", "TRUE")
	if !Bool("FASHIONSTORE_TEST_FLAG") {
		t.Fatalf("expected truthy flag")
	}
	t.Setenv("FASHIONSTORE_TEST_FLAG", "off")
	if Bool("FASHIONSTORE_TEST_FLAG") {
		t.Fatalf("expected falsy flag")
	}
}
