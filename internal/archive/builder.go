// Package archive builds password-protected ZIP files in memory.
package archive

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jmehdipour/monozip/internal/apperr"
	"github.com/yeka/zip"
)

// DefaultMaxTotal caps the summed size of all inputs (512 MiB).
const DefaultMaxTotal int64 = 512 << 20

type Mode string

const (
	ModeAES       Mode = "aes"
	ModeZipCrypto Mode = "zipcrypto"
)

func (m Mode) String() string { return string(m) }

// ParseMode normalizes input; empty => aes.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "aes", "aes-256", "aes256":
		return ModeAES, nil
	case "zipcrypto", "zip-crypto":
		return ModeZipCrypto, nil
	default:
		return "", apperr.Validation(fmt.Sprintf("unsupported encryption mode %q", s))
	}
}

func (m Mode) method() (zip.EncryptionMethod, error) {
	switch m {
	case ModeAES:
		return zip.AES256Encryption, nil
	case ModeZipCrypto:
		return zip.StandardEncryption, nil
	default:
		return 0, apperr.Validation(fmt.Sprintf("unsupported encryption mode %q", string(m)))
	}
}

// File is one in-memory archive entry.
type File struct {
	Name string
	Data []byte
}

// TotalSize sums the data length of files.
func TotalSize(files []File) int64 {
	var n int64
	for _, f := range files {
		n += int64(len(f.Data))
	}
	return n
}

type Builder struct {
	MaxTotal int64 // <= 0 means DefaultMaxTotal
}

func (b Builder) limit() int64 {
	if b.MaxTotal <= 0 {
		return DefaultMaxTotal
	}
	return b.MaxTotal
}

// Build encrypts files into a new ZIP. Nothing is written when validation fails.
func (b Builder) Build(files []File, password string, mode Mode) ([]byte, error) {
	if len(files) == 0 {
		return nil, apperr.Validation("select at least one file")
	}
	if total := TotalSize(files); total > b.limit() {
		return nil, apperr.PayloadTooLarge(fmt.Sprintf("total upload size %d exceeds the %d byte limit", total, b.limit()))
	}
	if password == "" {
		return nil, apperr.Validation("enter a password")
	}
	method, err := mode.method()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := NewNameSet()

	for _, f := range files {
		name := names.Claim(f.Name)
		w, err := zw.Encrypt(name, password, method)
		if err != nil {
			return nil, apperr.Archive("failed to build the ZIP file", fmt.Errorf("create entry %q: %w", name, err))
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, apperr.Archive("failed to build the ZIP file", fmt.Errorf("write entry %q: %w", name, err))
		}
	}

	if err := zw.Close(); err != nil {
		return nil, apperr.Archive("failed to build the ZIP file", fmt.Errorf("finalize: %w", err))
	}
	return buf.Bytes(), nil
}
