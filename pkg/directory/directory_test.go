package directory

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sf1r/coreengine/internal/vfs"
)

func newTestDir(name string) *Directory {
	return NewDirectory(name, vfs.NewMemDir())
}

func TestDirectory_AppendSCDAndLog(t *testing.T) {
	d := newTestDir("current")
	require.NoError(t, d.AppendSCD("B-01-202608031200-0000001-I-books.SCD"))
	require.NoError(t, d.AppendSCD("B-02-202608031200-0000001-I-books.SCD"))

	log, err := d.AppendLog()
	require.NoError(t, err)
	require.Equal(t, []string{"B-01-202608031200-0000001-I-books.SCD", "B-02-202608031200-0000001-I-books.SCD"}, log)
}

func TestDirectory_CopyFrom(t *testing.T) {
	current := newTestDir("current")
	err := vfs.WriteFile(current.Dir(), "data.bin", func(w io.Writer) error {
		_, err := w.Write([]byte("hello"))
		return err
	})
	require.NoError(t, err)

	next := newTestDir("next")
	require.NoError(t, next.CopyFrom(current))
	require.True(t, next.Valid())
	require.True(t, next.IsValidCopyOf(current))

	data, err := vfs.ReadFile(next.Dir(), "data.bin")
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestGuard_DirtyBlocksAcquisition(t *testing.T) {
	d := newTestDir("current")

	g, err := AcquireGuard(d)
	require.NoError(t, err)
	g.Fail()

	require.True(t, d.Dirty())
	_, err = AcquireGuard(d)
	require.Error(t, err)

	d.Reset()
	_, err = AcquireGuard(d)
	require.NoError(t, err)
}
