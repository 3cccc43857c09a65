package utils

import "testing"

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"rasdfs@gmail.com",
		"rasdfs@piosdf.com",
		"asdfj.jh@pio.sdf.com",
	}
	invalid := []string{
		"asdjfkjsdhf",
		"@asdfjaskh",
		"asdfasdf@",
		"asdf@localhost",
	}

	for _, v := range valid {
		if !ValidateEmail(v) {
			t.Errorf("Email should be valid: %s", v)
		}
	}

	for _, v := range invalid {
		if ValidateEmail(v) {
			t.Errorf("Email should be invalid: %s", v)
		}
	}
}
func TestSlugify(t *testing.T) {
	type Entry struct {
		in     string
		expect string
	}
	entries := []Entry{
		{"foo", "foo"},
		{"foo—à", "foo"},
		{"Hello World", "hello-world"},
		{"  Go   lang  ", "go-lang"},
		{"c++", "c"},
		{"under_score", "under_score"},
		{"a - b", "a-b"},
		{"--trim--", "trim"},
		{"ｆｏｏ", "foo"},
		{"ﬁle", "file"},
		{"Привет", ""},
		{"!!!", ""},
		{"", ""},
		{"Python 3.11", "python-311"},
	}
	for _, e := range entries {
		if got := Slugify(e.in); got != e.expect {
			t.Errorf("Slugify(%q) = %q, want %q", e.in, got, e.expect)
		}
	}
}
func TestGenToken(t *testing.T) {
	a := GenToken(32)
	b := GenToken(32)
	if a == b {
		t.Fatalf("GenToken returned the same token twice: %s", a)
	}
	if len(a) != 43 {
		t.Errorf("len(GenToken(32)) = %d, want 43", len(a))
	}
}
func TestTruncate(t *testing.T) {
	if got := Truncate("short", 15); got != "short" {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("How to write a web server in Go", 15); got != "How to write a…" {
		t.Errorf("Truncate = %q", got)
	}
}
