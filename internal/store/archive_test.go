package store

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	files := FileSet{
		"survey.toml":     []byte("[survey]\n"),
		"cave.mak":        []byte("#CAVE.DAT;"),
		"CAVE.DAT":        []byte("survey data"),
		"nested/plot.plt": []byte("plot"),
	}

	archive, err := Pack(files)
	require.NoError(t, err)

	got, err := Unpack(archive)
	require.NoError(t, err)
	assert.True(t, files.Equal(got), "round trip must reproduce the tree exactly")
}

func TestPackIsDeterministic(t *testing.T) {
	files := FileSet{
		"b.dat": []byte("b"),
		"a.dat": []byte("a"),
		"c.dat": []byte("c"),
	}
	first, err := Pack(files)
	require.NoError(t, err)
	second, err := Pack(files.Clone())
	require.NoError(t, err)
	assert.Equal(t, first, second, "identical trees must pack identically")
}

func TestUnpackIgnoresMemberOrder(t *testing.T) {
	// Build two archives with the same members in opposite order.
	build := func(names []string) []byte {
		var buf bytes.Buffer
		w := zip.NewWriter(&buf)
		for _, name := range names {
			f, err := w.Create(name)
			require.NoError(t, err)
			_, err = f.Write([]byte("content of " + name))
			require.NoError(t, err)
		}
		require.NoError(t, w.Close())
		return buf.Bytes()
	}

	forward, err := Unpack(build([]string{"a.dat", "b.dat"}))
	require.NoError(t, err)
	backward, err := Unpack(build([]string{"b.dat", "a.dat"}))
	require.NoError(t, err)
	assert.True(t, forward.Equal(backward), "member order must not affect reconstructed content")
}

func TestUnpackRejectsEscapingMembers(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("../outside.dat")
	require.NoError(t, err)
	_, err = f.Write([]byte("evil"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = Unpack(buf.Bytes())
	require.Error(t, err)
}

func TestUnpackRejectsGarbage(t *testing.T) {
	_, err := Unpack([]byte("this is not a zip archive"))
	require.Error(t, err)
}
