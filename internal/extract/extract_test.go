package extract

import (
	"os"
	"path/filepath"
	"testing"
)

func Test_Text_PlainTextFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.txt")
	want := "hello knowledge base\nsecond line\n"
	if err := os.WriteFile(path, []byte(want), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Text(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("want %q, got %q", want, got)
	}
}

func Test_Text_MarkdownFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "readme.md")
	if err := os.WriteFile(path, []byte("# Title\nbody"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Text(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == "" {
		t.Error("want non-empty text")
	}
}

func Test_Text_UnsupportedTypeFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "image.png")
	if err := os.WriteFile(path, []byte{0x89, 0x50, 0x4e, 0x47}, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Text(path); err == nil {
		t.Error("want error for unsupported file type")
	}
}

func Test_Supported(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path string
		want bool
	}{
		{"a.pdf", true},
		{"a.DOCX", true},
		{"a.xlsx", true},
		{"a.txt", true},
		{"a.md", true},
		{"a.png", false},
		{"a", false},
	}
	for _, tc := range cases {
		if got := Supported(tc.path); got != tc.want {
			t.Errorf("Supported(%q): want %v, got %v", tc.path, tc.want, got)
		}
	}
}

func Test_StripTags(t *testing.T) {
	t.Parallel()

	got := stripTags(`<w:p><w:r><w:t>hello</w:t></w:r></w:p> world`)
	if got != "hello world" {
		t.Errorf("want %q, got %q", "hello world", got)
	}
}
