package storage

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e621dl/pkg/e621"
)

func TestSanitizeDirName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"cats", "cats"},
		{"Big Cats", "big_cats"},
		{`a\b/c:d*e?f"g<h>i|j`, "a_b_c_d_e_f_g_h_i_j"},
		{"tab\there", "tab_here"},
		{"..", "_"},
		{"", "_"},
		{"../escape", ".._escape"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeDirName(tt.in), tt.in)
	}
}

func TestPostPathDeterministic(t *testing.T) {
	a := PostPath("downloads", "Big Cats", 12345, "d41d8cd9", false, "png")
	b := PostPath("downloads", "Big Cats", 12345, "d41d8cd9", false, "png")

	assert.Equal(t, a, b)
	assert.Equal(t, filepath.Join("downloads", "big_cats", "12345.png"), a)
	assert.Equal(t,
		filepath.Join("downloads", "big_cats", "12345.d41d8cd9.png"),
		PostPath("downloads", "Big Cats", 12345, "d41d8cd9", true, "png"))
	assert.Equal(t,
		filepath.Join("downloads", "big_cats", "12345.png"),
		PostPath("downloads", "Big Cats", 12345, "", true, "png"),
		"missing md5 falls back to the id only")
}

func TestPartialHelpers(t *testing.T) {
	final := filepath.Join("downloads", "cats", "7.png")
	partial := PartialPath(final)

	assert.Equal(t, final+".request", partial)
	assert.Equal(t, partial, PartialPath(partial))
	assert.True(t, IsPartial(partial))
	assert.False(t, IsPartial(final))
	assert.Equal(t, final, FinalPath(partial))

	id, err := PartialPostID(filepath.Join("downloads", "cats", "7.abc123.png.request"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	_, err = PartialPostID("notes.txt.request")
	assert.Error(t, err)
}

func TestLayout(t *testing.T) {
	root := t.TempDir()
	layout := NewLayout(root, true)
	post := &e621.Post{ID: 9, MD5: "ff", FileExt: "webm"}

	require.NoError(t, layout.EnsureDir("My Search"))
	info, err := os.Stat(filepath.Join(root, "my_search"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	dest := layout.PathFor("My Search", post)
	assert.Equal(t, filepath.Join(root, "my_search", "9.ff.webm"), dest)

	present, err := Exists(dest)
	require.NoError(t, err)
	assert.False(t, present)

	require.NoError(t, os.WriteFile(dest, []byte("x"), 0644))
	present, err = Exists(dest)
	require.NoError(t, err)
	assert.True(t, present)

	present, err = Exists(layout.SearchDir("My Search"))
	require.NoError(t, err)
	assert.False(t, present, "directories are not downloads")
}

func TestScanPartials(t *testing.T) {
	root := t.TempDir()
	files := []string{
		filepath.Join(root, "cats", "1.png.request"),
		filepath.Join(root, "cats", "2.png"),
		filepath.Join(root, "dogs", "nested", "3.jpg.request"),
	}
	for _, f := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(f), 0755))
		require.NoError(t, os.WriteFile(f, nil, 0644))
	}

	partials, err := ScanPartials(root)
	require.NoError(t, err)
	sort.Strings(partials)
	assert.Equal(t, []string{files[0], files[2]}, partials)

	none, err := ScanPartials(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Empty(t, none)
}
