package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"github.com/ZebulonRouseFrantzich/artifetch/internal/testutil"
)

// relFiles returns written paths relative to root, slash separated.
func relFiles(t *testing.T, root string, files []string) []string {
	t.Helper()

	out := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			t.Fatalf("failed to relativize %s: %v", f, err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

func sampleMembers() []testutil.Member {
	return []testutil.Member{
		testutil.Dir("embree-4.3.3/"),
		testutil.File("embree-4.3.3/lib/libembree4.so.4", "shared object"),
		testutil.File("embree-4.3.3/include/embree4/rtcore.h", "#pragma once\n"),
		testutil.File("embree-4.3.3/doc/README.md", "readme"),
		testutil.File("embree-4.3.3/bin/embree_info", "tool"),
		testutil.File("embree-4.3.3/lib/empty.txt", ""),
	}
}

func TestExtract_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format ArchiveFormat
		data   func(t *testing.T) []byte
	}{
		{name: "tar.gz", format: FormatTarGz, data: func(t *testing.T) []byte { return testutil.TarGz(t, sampleMembers()...) }},
		{name: "tar.xz", format: FormatTarXz, data: func(t *testing.T) []byte { return testutil.TarXz(t, sampleMembers()...) }},
		{name: "zip", format: FormatZip, data: func(t *testing.T) []byte { return testutil.Zip(t, sampleMembers()...) }},
	}

	want := []string{
		"lib/libembree4.so.4",
		"include/embree4/rtcore.h",
		"doc/README.md",
		"bin/embree_info",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			files, err := NewPlacer(nil).Extract(tt.data(t), root, PlaceOptions{
				Format:          tt.format,
				StripComponents: 1,
			})
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}

			if got := relFiles(t, root, files); !reflect.DeepEqual(got, want) {
				t.Errorf("files = %v, want %v", got, want)
			}
			if got := readFile(t, filepath.Join(root, "lib", "libembree4.so.4")); got != "shared object" {
				t.Errorf("content = %q, want %q", got, "shared object")
			}
			if _, err := os.Stat(filepath.Join(root, "lib", "empty.txt")); !os.IsNotExist(err) {
				t.Errorf("zero-length member should not be written, stat err = %v", err)
			}
		})
	}
}

func TestExtract_Bzip2Fixture(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "sample.tar.bz2"))
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}

	root := t.TempDir()
	files, err := NewPlacer(nil).Extract(data, root, PlaceOptions{Format: FormatTarBz2, StripComponents: 1})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := []string{"lib/libfoo.so", "include/foo.h"}
	if got := relFiles(t, root, files); !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
	if got := readFile(t, filepath.Join(root, "include", "foo.h")); got != "#pragma once\n" {
		t.Errorf("foo.h = %q", got)
	}
}

func TestExtract_StripComponents(t *testing.T) {
	data := testutil.TarGz(t,
		testutil.File("a/b/c/deep.txt", "deep"),
		testutil.File("a/top.txt", "top"),
	)

	tests := []struct {
		strip int
		want  []string
	}{
		{strip: 0, want: []string{"a/b/c/deep.txt", "a/top.txt"}},
		{strip: 1, want: []string{"b/c/deep.txt", "top.txt"}},
		{strip: 2, want: []string{"c/deep.txt"}},
		{strip: 5, want: []string{}},
	}

	for _, tt := range tests {
		t.Run("strip_"+string(rune('0'+tt.strip)), func(t *testing.T) {
			root := t.TempDir()
			files, err := NewPlacer(nil).Extract(data, root, PlaceOptions{Format: FormatTarGz, StripComponents: tt.strip})
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if got := relFiles(t, root, files); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("files = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtract_Skip(t *testing.T) {
	tests := []struct {
		name  string
		skips []string
		want  []string
	}{
		{
			name:  "star_crosses_directories",
			skips: []string{"*.md"},
			want:  []string{"lib/libembree4.so.4", "include/embree4/rtcore.h", "bin/embree_info"},
		},
		{
			name:  "directory_prefix",
			skips: []string{"include/*", "bin/*"},
			want:  []string{"lib/libembree4.so.4", "doc/README.md"},
		},
		{
			name:  "question_mark_and_class",
			skips: []string{"li?/*", "[bd]*"},
			want:  []string{"include/embree4/rtcore.h"},
		},
		{
			name:  "negated_class",
			skips: []string{"[!l]*"},
			want:  []string{"lib/libembree4.so.4"},
		},
	}

	data := testutil.TarGz(t, sampleMembers()...)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			files, err := NewPlacer(nil).Extract(data, root, PlaceOptions{
				Format:          FormatTarGz,
				StripComponents: 1,
				ExtractSkip:     tt.skips,
			})
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if got := relFiles(t, root, files); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("files = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtract_SkipLiteralCharacters(t *testing.T) {
	data := testutil.TarGz(t,
		testutil.File("a", "a"),
		testutil.File("b", "b"),
		testutil.File("{a,b}", "braces"),
		testutil.File(`lib\x`, "backslash"),
		testutil.File("libx", "plain"),
		testutil.File("[abc", "bracket"),
	)

	tests := []struct {
		name  string
		skips []string
		want  []string
	}{
		{name: "braces_are_literal", skips: []string{"{a,b}"}, want: []string{"a", "b", `lib\x`, "libx", "[abc"}},
		{name: "backslash_is_literal", skips: []string{`lib\x`}, want: []string{"a", "b", "{a,b}", "libx", "[abc"}},
		{name: "unclosed_bracket_is_literal", skips: []string{"[abc"}, want: []string{"a", "b", "{a,b}", `lib\x`, "libx"}},
		{name: "class_still_works", skips: []string{"[ab]"}, want: []string{"{a,b}", `lib\x`, "libx", "[abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			files, err := NewPlacer(nil).Extract(data, root, PlaceOptions{Format: FormatTarGz, ExtractSkip: tt.skips})
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if got := relFiles(t, root, files); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("files = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFnmatchPattern(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "*.h", want: "*.h"},
		{in: "{a,b}", want: `\{a\,b\}`},
		{in: `a\b`, want: `a\\b`},
		{in: "[!x]*", want: "[!x]*"},
		{in: "[abc", want: `\[abc`},
		{in: "x]", want: `x\]`},
	}

	for _, tt := range tests {
		if got := fnmatchPattern(tt.in); got != tt.want {
			t.Errorf("fnmatchPattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtract_Only(t *testing.T) {
	data := testutil.TarGz(t,
		testutil.File("first/bin/tool", "first"),
		testutil.File("second/bin/tool", "second"),
		testutil.File("first/lib/libx.so", "lib"),
	)

	root := t.TempDir()
	files, err := NewPlacer(nil).Extract(data, root, PlaceOptions{
		Format:      FormatTarGz,
		ExtractOnly: "tool",
		// Ignored when ExtractOnly is set.
		ExtractSkip: []string{"*"},
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if got := relFiles(t, root, files); !reflect.DeepEqual(got, []string{"tool"}) {
		t.Fatalf("files = %v, want [tool]", got)
	}
	if got := readFile(t, filepath.Join(root, "tool")); got != "first" {
		t.Errorf("tool = %q, want first", got)
	}
	if _, err := os.Stat(filepath.Join(root, "libx.so")); !os.IsNotExist(err) {
		t.Errorf("only the matching member should be written")
	}
}

func TestExtract_OnlyNoMatch(t *testing.T) {
	data := testutil.Zip(t, testutil.File("pkg/readme", "x"))

	root := filepath.Join(t.TempDir(), "out")
	files, err := NewPlacer(nil).Extract(data, root, PlaceOptions{Format: FormatZip, ExtractOnly: "tool"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(files) != 0 {
		t.Errorf("files = %v, want none", files)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Errorf("root should not be created when nothing matched")
	}
}

func TestExtract_OnlyEmptyMemberStopsWalk(t *testing.T) {
	data := testutil.TarGz(t,
		testutil.File("a/tool", ""),
		testutil.File("b/tool", "real"),
	)

	root := t.TempDir()
	files, err := NewPlacer(nil).Extract(data, root, PlaceOptions{Format: FormatTarGz, ExtractOnly: "tool"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(files) != 0 {
		t.Errorf("files = %v, want none", files)
	}
}

func TestExtract_Links(t *testing.T) {
	data := testutil.TarGz(t,
		testutil.File("pkg/lib/libfoo.so.1.2", "real library"),
		testutil.Member{Name: "pkg/lib/libfoo.so.1", Symlink: "libfoo.so.1.2"},
		testutil.Member{Name: "pkg/lib/libfoo.so", Symlink: "libfoo.so.1"},
		testutil.Member{Name: "pkg/lib/hard", Hardlink: "pkg/lib/libfoo.so.1.2"},
		testutil.Member{Name: "pkg/lib/dangling", Symlink: "missing"},
		testutil.Member{Name: "pkg/lib/absolute", Symlink: "/etc/hostname"},
	)

	root := t.TempDir()
	files, err := NewPlacer(nil).Extract(data, root, PlaceOptions{Format: FormatTarGz, StripComponents: 1})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := []string{"lib/libfoo.so.1.2", "lib/libfoo.so.1", "lib/libfoo.so", "lib/hard"}
	if got := relFiles(t, root, files); !reflect.DeepEqual(got, want) {
		t.Fatalf("files = %v, want %v", got, want)
	}

	for _, name := range want {
		path := filepath.Join(root, filepath.FromSlash(name))
		info, err := os.Lstat(path)
		if err != nil {
			t.Fatalf("failed to stat %s: %v", name, err)
		}
		if !info.Mode().IsRegular() {
			t.Errorf("%s should be a regular file, mode %v", name, info.Mode())
		}
		if got := readFile(t, path); got != "real library" {
			t.Errorf("%s = %q, want %q", name, got, "real library")
		}
	}
}

func TestExtract_HardlinkChain(t *testing.T) {
	data := testutil.TarGz(t,
		testutil.File("pkg/bin/tool", "binary"),
		testutil.Member{Name: "pkg/bin/tool-1", Hardlink: "pkg/bin/tool"},
		testutil.Member{Name: "pkg/bin/tool-2", Hardlink: "pkg/bin/tool-1"},
	)

	root := t.TempDir()
	files, err := NewPlacer(nil).Extract(data, root, PlaceOptions{Format: FormatTarGz, ExtractOnly: "tool-2"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := relFiles(t, root, files); !reflect.DeepEqual(got, []string{"tool-2"}) {
		t.Fatalf("files = %v, want [tool-2]", got)
	}
	if got := readFile(t, filepath.Join(root, "tool-2")); got != "binary" {
		t.Errorf("tool-2 = %q, want binary", got)
	}
}

func TestExtract_LinkLoop(t *testing.T) {
	data := testutil.TarGz(t,
		testutil.Member{Name: "a", Symlink: "b"},
		testutil.Member{Name: "b", Symlink: "a"},
	)

	_, err := NewPlacer(nil).Extract(data, t.TempDir(), PlaceOptions{Format: FormatTarGz})
	if err == nil {
		t.Fatal("expected error for link loop")
	}
}

func TestExtract_UnsafePaths(t *testing.T) {
	tests := []struct {
		name   string
		member string
		strip  int
	}{
		{name: "parent", member: "../evil"},
		{name: "nested_parent", member: "pkg/../../evil"},
		{name: "parent_after_strip", member: "pkg/../evil", strip: 1},
		{name: "absolute", member: "/tmp/evil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := t.TempDir()
			root := filepath.Join(parent, "root")

			data := testutil.TarGz(t, testutil.File(tt.member, "payload"))
			_, err := NewPlacer(nil).Extract(data, root, PlaceOptions{Format: FormatTarGz, StripComponents: tt.strip})
			if !errors.Is(err, ErrUnsafePath) {
				t.Fatalf("expected ErrUnsafePath, got %v", err)
			}
			if _, err := os.Stat(filepath.Join(parent, "evil")); !os.IsNotExist(err) {
				t.Errorf("member escaped the target directory")
			}
		})
	}
}

func TestExtract_SkipsExistingDirectoryDestination(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "lib", "libfoo.so"), 0755); err != nil {
		t.Fatal(err)
	}

	data := testutil.TarGz(t,
		testutil.File("lib/libfoo.so", "x"),
		testutil.File("lib/other.so", "y"),
	)
	files, err := NewPlacer(nil).Extract(data, root, PlaceOptions{Format: FormatTarGz})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := relFiles(t, root, files); !reflect.DeepEqual(got, []string{"lib/other.so"}) {
		t.Errorf("files = %v, want [lib/other.so]", got)
	}
}

func TestExtract_Chmod(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}

	mode := os.FileMode(0o750)
	root := t.TempDir()
	data := testutil.Zip(t, testutil.File("bin/tool", "x"), testutil.File("bin/helper", "y"))

	files, err := NewPlacer(nil).Extract(data, root, PlaceOptions{Format: FormatZip, Chmod: &mode})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != mode {
			t.Errorf("%s mode = %v, want %v", f, info.Mode().Perm(), mode)
		}
	}
}

func TestPlace_SingleFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "deep", "nested", "tool.exe")
	mode := os.FileMode(0o755)

	files, err := NewPlacer(nil).Place([]byte("binary"), target, PlaceOptions{Format: FormatNone, Chmod: &mode})
	if err != nil {
		t.Fatalf("Place() error = %v", err)
	}
	if !reflect.DeepEqual(files, []string{target}) {
		t.Errorf("files = %v, want [%s]", files, target)
	}
	if got := readFile(t, target); got != "binary" {
		t.Errorf("content = %q, want binary", got)
	}
	if _, err := os.Stat(target + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind")
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(target)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != mode {
			t.Errorf("mode = %v, want %v", info.Mode().Perm(), mode)
		}
	}
}

func TestStripComponents(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want string
	}{
		{name: "a/b/c", n: 0, want: "a/b/c"},
		{name: "a/b/c", n: 1, want: "b/c"},
		{name: "a/b/c", n: 3, want: ""},
		{name: "a/", n: 1, want: ""},
		{name: "./a/b", n: 1, want: "a/b"},
	}

	for _, tt := range tests {
		if got := stripComponents(tt.name, tt.n); got != tt.want {
			t.Errorf("stripComponents(%q, %d) = %q, want %q", tt.name, tt.n, got, tt.want)
		}
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		url  string
		want ArchiveFormat
	}{
		{url: "https://example.com/embree-4.3.3.x86_64.linux.tar.gz", want: FormatTarGz},
		{url: "https://example.com/a.tar.xz", want: FormatTarXz},
		{url: "https://example.com/a.tar.bz2", want: FormatTarBz2},
		{url: "https://example.com/a.zip", want: FormatZip},
		{url: "https://example.com/a.zip?token=abc#frag", want: FormatZip},
		{url: "https://example.com/a.tgz", want: FormatNone},
		{url: "https://example.com/tool.exe", want: FormatNone},
		{url: "https://example.com/download?file=a.zip", want: FormatNone},
	}

	for _, tt := range tests {
		if got := DetectFormat(tt.url); got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
