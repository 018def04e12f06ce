package pathload

import "testing"

func TestDecode(t *testing.T) {
	tests := []struct {
		in    []byte
		label string
		want  string
	}{
		{[]byte("plain"), "", "plain"},
		{[]byte("caf\xc3\xa9"), "UTF-8", "café"},
		{[]byte("caf\xe9"), "latin1", "café"},
		{[]byte("caf\xe9"), " ISO-8859-1 ", "café"},
		{[]byte{'h', 0, 'i', 0}, "utf-16le", "hi"},
	}
	for _, tt := range tests {
		got, err := decode(tt.in, tt.label)
		if err != nil || got != tt.want {
			t.Errorf("decode(%q, %q) = %q, %v; want %q", tt.in, tt.label, got, err, tt.want)
		}
	}
	if _, err := decode([]byte("x"), "klingon"); err == nil {
		t.Error("unknown label should fail")
	}
}

func TestCharsetOf(t *testing.T) {
	tests := map[string]string{
		"":                               "",
		"application/json":               "",
		"text/plain; charset=ISO-8859-1": "ISO-8859-1",
		`text/html; charset="utf-8"`:     "utf-8",
		"not a media type;;;":            "",
	}
	for in, want := range tests {
		if got := charsetOf(in); got != want {
			t.Errorf("charsetOf(%q) = %q, want %q", in, got, want)
		}
	}
}
