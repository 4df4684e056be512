package base

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/plugin"
)

func appendFile(t *testing.T, path, contents string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(contents)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func newFollowfile(t *testing.T, path string) *Followfile {
	t.Helper()
	src, err := NewFollowfile(config.Options{"location": path}, plugin.Dependencies{})
	require.NoError(t, err)
	ff := src.(*Followfile)
	t.Cleanup(func() { ff.Close() })
	return ff
}

func runLines(t *testing.T, ff *Followfile) []string {
	t.Helper()
	require.NoError(t, ff.Run(context.Background()))
	lines, _ := ff.Data().([]string)
	return lines
}

func TestFollowfileStartsAtEnd(t *testing.T) {
	path := writeFile(t, "app.log", "old line\n")
	ff := newFollowfile(t, path)

	require.Empty(t, runLines(t, ff))

	appendFile(t, path, "first\nsecond\n")
	require.Equal(t, []string{"first", "second"}, runLines(t, ff))
	require.Empty(t, runLines(t, ff))
}

func TestFollowfileHoldsPartialLine(t *testing.T) {
	path := writeFile(t, "app.log", "")
	ff := newFollowfile(t, path)

	appendFile(t, path, "one\npar")
	require.Equal(t, []string{"one"}, runLines(t, ff))

	appendFile(t, path, "tial  \r\n")
	require.Equal(t, []string{"partial"}, runLines(t, ff))
}

func TestFollowfileTruncation(t *testing.T) {
	path := writeFile(t, "app.log", "")
	ff := newFollowfile(t, path)

	appendFile(t, path, "aaaaaaaa\nbbbbbbbb\n")
	require.Len(t, runLines(t, ff), 2)

	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))
	require.Equal(t, []string{"x"}, runLines(t, ff))
}

func TestFollowfileRotation(t *testing.T) {
	path := writeFile(t, "app.log", "")
	ff := newFollowfile(t, path)

	appendFile(t, path, "before\n")
	require.Equal(t, []string{"before"}, runLines(t, ff))

	appendFile(t, path, "tail of old\n")
	require.NoError(t, os.Rename(path, path+".1"))
	require.NoError(t, os.WriteFile(path, []byte("fresh\n"), 0o644))

	var got []string
	require.Eventually(t, func() bool {
		if err := ff.Run(context.Background()); err != nil {
			return false
		}
		lines, _ := ff.Data().([]string)
		got = append(got, lines...)
		return slices.Contains(got, "fresh")
	}, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, []string{"tail of old", "fresh"}, got)

	appendFile(t, path, "after\n")
	require.Equal(t, []string{"after"}, runLines(t, ff))
}

func TestFollowfileRequiresExistingFile(t *testing.T) {
	_, err := NewFollowfile(config.Options{"location": filepath.Join(t.TempDir(), "missing.log")}, plugin.Dependencies{})
	require.ErrorContains(t, err, "does not exist")

	_, err = NewFollowfile(config.Options{"location": t.TempDir()}, plugin.Dependencies{})
	require.Error(t, err)

	_, err = NewFollowfile(config.Options{}, plugin.Dependencies{})
	require.Error(t, err)
}

func TestFollowfileClose(t *testing.T) {
	path := writeFile(t, "app.log", "")
	src, err := NewFollowfile(config.Options{"location": path}, plugin.Dependencies{})
	require.NoError(t, err)
	require.NoError(t, src.(*Followfile).Close())
}
