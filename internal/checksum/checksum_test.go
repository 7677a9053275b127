package checksum

import "testing"

func TestSum(t *testing.T) {
	a := Sum([]byte("hello"))
	if len(a) != 64 {
		t.Fatalf("len = %d, want 64", len(a))
	}
	if a != Sum([]byte("hello")) {
		t.Error("Sum is not deterministic")
	}
	if a == Sum([]byte("hello!")) {
		t.Error("different input, same digest")
	}
}

func TestETag(t *testing.T) {
	sum := Sum([]byte("hello"))
	if got, want := ETag(sum), `"`+sum[:16]+`"`; got != want {
		t.Errorf("ETag = %s, want %s", got, want)
	}
	if got := ETag("abc"); got != `"abc"` {
		t.Errorf("ETag(short) = %s", got)
	}
}
