package archive_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/jmehdipour/monozip/internal/apperr"
	"github.com/jmehdipour/monozip/internal/archive"
	"github.com/stretchr/testify/require"
	"github.com/yeka/zip"
)

const (
	localHeaderSig  = 0x04034b50
	flagEncrypted   = 0x1
	methodWinZipAES = 99
	methodDeflate   = 8
)

type localHeader struct {
	flags  uint16
	method uint16
}

func firstLocalHeader(t *testing.T, data []byte) localHeader {
	t.Helper()
	require.GreaterOrEqual(t, len(data), 30)
	require.Equal(t, uint32(localHeaderSig), binary.LittleEndian.Uint32(data[0:4]))
	return localHeader{
		flags:  binary.LittleEndian.Uint16(data[6:8]),
		method: binary.LittleEndian.Uint16(data[8:10]),
	}
}

func sampleFiles() []archive.File {
	return []archive.File{
		{Name: "report.txt", Data: []byte("quarterly numbers")},
		{Name: "data/report.txt", Data: bytes.Repeat([]byte("x"), 4096)},
	}
}

func TestBuildAES(t *testing.T) {
	out, err := archive.Builder{}.Build(sampleFiles(), "pw", archive.ModeAES)
	require.NoError(t, err)

	h := firstLocalHeader(t, out)
	require.NotZero(t, h.flags&flagEncrypted)
	require.Equal(t, uint16(methodWinZipAES), h.method)

	r, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	require.Len(t, r.File, 2)
	require.Equal(t, "report.txt", r.File[0].Name)
	require.Equal(t, "report_2.txt", r.File[1].Name)

	f := r.File[0]
	require.True(t, f.IsEncrypted())
	f.SetPassword("pw")
	rc, err := f.Open()
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "quarterly numbers", string(got))
}

func TestBuildZipCrypto(t *testing.T) {
	out, err := archive.Builder{}.Build(sampleFiles(), "pw", archive.ModeZipCrypto)
	require.NoError(t, err)

	h := firstLocalHeader(t, out)
	require.NotZero(t, h.flags&flagEncrypted)
	require.NotEqual(t, uint16(methodWinZipAES), h.method)
	require.Equal(t, uint16(methodDeflate), h.method)

	r, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	for _, f := range r.File {
		require.True(t, f.IsEncrypted(), f.Name)
	}

	f := r.File[1]
	f.SetPassword("pw")
	rc, err := f.Open()
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, bytes.Repeat([]byte("x"), 4096), got)
}

func TestBuildTooLarge(t *testing.T) {
	// 513 entries sharing one 1 MiB buffer: 513 MiB of input, 1 MiB of memory.
	chunk := make([]byte, 1<<20)
	files := make([]archive.File, 513)
	for i := range files {
		files[i] = archive.File{Name: "part.bin", Data: chunk}
	}
	require.Equal(t, int64(513<<20), archive.TotalSize(files))

	out, err := archive.Builder{}.Build(files, "pw", archive.ModeAES)
	require.ErrorIs(t, err, apperr.ErrPayloadTooLarge)
	require.Nil(t, out)
}

func TestBuildExactlyAtLimit(t *testing.T) {
	files := []archive.File{{Name: "a", Data: []byte("12345")}}

	_, err := archive.Builder{MaxTotal: 5}.Build(files, "pw", archive.ModeAES)
	require.NoError(t, err)

	_, err = archive.Builder{MaxTotal: 4}.Build(files, "pw", archive.ModeAES)
	require.ErrorIs(t, err, apperr.ErrPayloadTooLarge)
}

func TestBuildValidation(t *testing.T) {
	_, err := archive.Builder{}.Build(nil, "pw", archive.ModeAES)
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = archive.Builder{}.Build(sampleFiles(), "", archive.ModeAES)
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = archive.Builder{}.Build(sampleFiles(), "pw", archive.Mode("rot13"))
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]archive.Mode{
		"":          archive.ModeAES,
		"aes":       archive.ModeAES,
		"AES-256":   archive.ModeAES,
		"zipcrypto": archive.ModeZipCrypto,
		"ZIPCRYPTO": archive.ModeZipCrypto,
	} {
		got, err := archive.ParseMode(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := archive.ParseMode("des")
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestArchiveName(t *testing.T) {
	now := time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC)

	require.Equal(t, "monozip_20240307_140509.zip", archive.ArchiveName("", now))
	require.Equal(t, "monozip_20240307_140509.zip", archive.ArchiveName("../..", now))
	require.Equal(t, "invoice.zip", archive.ArchiveName("invoice", now))
	require.Equal(t, "Invoice.ZIP", archive.ArchiveName("Invoice.ZIP", now))
	require.Equal(t, "passwd.zip", archive.ArchiveName("../../etc/passwd", now))
	require.Equal(t, "請求書.zip", archive.ArchiveName("請求書", now))
}

func TestNameSet(t *testing.T) {
	s := archive.NewNameSet()

	require.Equal(t, "a.txt", s.Claim("dir/a.txt"))
	require.Equal(t, "A_2.txt", s.Claim("A.txt"))
	require.Equal(t, "file_1", s.Claim(""))
	require.Equal(t, "file_2", s.Claim("..."))
	require.Equal(t, "x_y.txt", s.Claim("x:y.txt"))
}
