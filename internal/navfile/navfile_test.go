package navfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const headerNav = `# main site navigation
header:
  - path: docs
    label: Docs
    children:
      # kept in sync by hand until 2024
      - path: docs/old
        label: Old docs
        children:
          - path: docs/old/faq
            label: FAQ
      - path: docs/setup
        label: Setup
  - path: /blog
    label: Blog
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

type navItem struct {
	Path     string    `yaml:"path"`
	Label    string    `yaml:"label"`
	Children []navItem `yaml:"children"`
}

func paths(items []navItem) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.Path)
		out = append(out, paths(it.Children)...)
	}
	return out
}

func TestRewrite(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "header.yaml", headerNav)
	d := New(dir)

	tests := []struct {
		name   string
		remove string
		want   []string // nil means no rewrite
	}{
		{"nested subtree", "docs/old", []string{"docs", "docs/setup", "/blog"}},
		{"leaf", "docs/old/faq", []string{"docs", "docs/old", "docs/setup", "/blog"}},
		{"leading slash in file", "blog", []string{"docs", "docs/old", "docs/old/faq", "docs/setup"}},
		{"whole branch", "docs", []string{"/blog"}},
		{"not mentioned", "shop", nil},
		{"prefix is not a segment", "doc", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := d.Rewrite(file, tt.remove)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, data)
				return
			}
			var doc map[string][]navItem
			require.NoError(t, yaml.Unmarshal(data, &doc))
			assert.Equal(t, tt.want, paths(doc["header"]))
		})
	}
}

func TestRewrite_KeepsComments(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "header.yaml", headerNav)

	data, err := New(dir).Rewrite(file, "docs/old/faq")
	require.NoError(t, err)
	assert.Contains(t, string(data), "# main site navigation")
	assert.Contains(t, string(data), "# kept in sync by hand")
	assert.NotContains(t, string(data), "FAQ")

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, headerNav, string(raw), "Rewrite does not touch the file")
}

func TestRewrite_TopLevelList(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "footer.yml", "- path: a\n  label: A\n- path: b\n  label: B\n")

	data, err := New(dir).Rewrite(file, "a")
	require.NoError(t, err)
	var items []navItem
	require.NoError(t, yaml.Unmarshal(data, &items))
	assert.Equal(t, []string{"b"}, paths(items))
}

func TestRewrite_Errors(t *testing.T) {
	dir := t.TempDir()
	d := New(dir)

	_, err := d.Rewrite(filepath.Join(dir, "missing.yaml"), "a")
	assert.Error(t, err)

	bad := writeFile(t, dir, "bad.yaml", "header: [unclosed\n")
	_, err = d.Rewrite(bad, "a")
	assert.Error(t, err)

	empty := writeFile(t, dir, "empty.yaml", "")
	data, err := d.Rewrite(empty, "a")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yml", "[]\n")
	writeFile(t, dir, "a.yaml", "[]\n")
	writeFile(t, dir, "notes.txt", "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755))

	files, err := New(dir).Files()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yml")}, files)

	files, err = New(filepath.Join(dir, "nope")).Files()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "header.yaml", headerNav)
	d := New(dir)

	data, err := d.Rewrite(file, "docs")
	require.NoError(t, err)
	require.NoError(t, d.Save(file, data))

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, data, raw)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
