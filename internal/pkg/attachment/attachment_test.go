package attachment

import (
	"Concierge/internal/api/config"
	"Concierge/internal/model"
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func newPreparer() *Preparer {
	return NewPreparer(config.AttachmentConfig{
		MaxSize:         1 << 20,
		AllowedPrefixes: []string{"image/", "application/pdf", "text/plain"},
		MaxDimension:    64,
	})
}

func TestNew_SniffsContentType(t *testing.T) {
	f := New("room.png", "", pngBytes(t, 4, 4))
	require.Equal(t, "image/png", f.ContentType)
	require.Equal(t, model.KindImage, f.Kind())

	txt := New("note.txt", "", []byte("late checkout please"))
	require.Equal(t, "text/plain", txt.ContentType)
	require.Equal(t, model.KindFile, txt.Kind())
}

func TestPreparer_Validate(t *testing.T) {
	p := newPreparer()

	require.ErrorIs(t, p.Validate(File{Data: []byte("x"), ContentType: "text/plain"}), ErrMissingFileName)
	require.ErrorIs(t, p.Validate(File{Name: "a.txt", ContentType: "text/plain"}), ErrEmptyFile)
	require.ErrorIs(t, p.Validate(File{Name: "a.exe", ContentType: "application/x-msdownload", Data: []byte("MZ")}), ErrTypeNotAllowed)

	big := File{Name: "big.txt", ContentType: "text/plain", Data: make([]byte, (1<<20)+1)}
	require.ErrorIs(t, p.Validate(big), ErrFileTooLarge)

	require.NoError(t, p.Validate(File{Name: "a.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}))
}

func TestPreparer_DownscalesLargeImages(t *testing.T) {
	p := newPreparer()

	out, err := p.Prepare(New("wide.png", "", pngBytes(t, 256, 128)))
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	require.Equal(t, 64, cfg.Width)
	require.Equal(t, 32, cfg.Height)

	small := New("small.png", "", pngBytes(t, 16, 16))
	same, err := p.Prepare(small)
	require.NoError(t, err)
	require.Equal(t, small.Data, same.Data)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoice.txt")
	require.NoError(t, os.WriteFile(path, []byte("total: 120"), 0o600))

	f, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, "invoice.txt", f.Name)
	require.Equal(t, int64(10), f.Size())

	_, err = Open(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
