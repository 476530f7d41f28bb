package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/jmehdipour/monozip/internal/apperr"
	"github.com/jmehdipour/monozip/internal/archive"
	"github.com/jmehdipour/monozip/internal/metrics"
	"github.com/labstack/echo/v4"
)

const (
	maxFieldBytes = 4 << 10
	// headers and text fields on top of the file payload
	formOverhead = 1 << 20
)

type zipForm struct {
	files     []archive.File
	fileParts int
	fields    map[string]string
}

func (f zipForm) field(names ...string) string {
	for _, n := range names {
		if v := f.fields[n]; v != "" {
			return v
		}
	}
	return ""
}

// readZipForm streams the multipart body into memory. File parts named
// "files" are kept unless empty; the summed file size may not exceed limit.
func readZipForm(c echo.Context, limit int64) (zipForm, error) {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, limit+formOverhead)

	mr, err := req.MultipartReader()
	if err != nil {
		return zipForm{}, apperr.Validation("expected a multipart/form-data upload")
	}

	form := zipForm{fields: map[string]string{}}
	var total int64
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return zipForm{}, uploadError(err, limit)
		}

		name := part.FormName()
		if name == "files" {
			form.fileParts++
			var buf bytes.Buffer
			n, err := io.Copy(&buf, io.LimitReader(part, limit-total+1))
			_ = part.Close()
			if err != nil {
				return zipForm{}, uploadError(err, limit)
			}
			total += n
			if total > limit {
				return zipForm{}, tooLarge(limit)
			}
			if n == 0 {
				continue
			}
			form.files = append(form.files, archive.File{Name: part.FileName(), Data: buf.Bytes()})
			continue
		}

		val, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
		_ = part.Close()
		if err != nil {
			return zipForm{}, uploadError(err, limit)
		}
		if _, seen := form.fields[name]; !seen {
			form.fields[name] = string(val)
		}
	}
	return form, nil
}

func tooLarge(limit int64) error {
	return apperr.PayloadTooLarge(fmt.Sprintf("total upload size exceeds the %d byte limit", limit))
}

func uploadError(err error, limit int64) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return tooLarge(limit)
	}
	return apperr.Validation("the upload could not be read")
}

func zipHandler(builder archive.Builder, now func() time.Time) echo.HandlerFunc {
	limit := builder.MaxTotal
	if limit <= 0 {
		limit = archive.DefaultMaxTotal
	}
	return func(c echo.Context) error {
		form, err := readZipForm(c, limit)
		if err != nil {
			return zipError(c, err, limit)
		}

		if form.fileParts == 0 {
			return zipError(c, apperr.Validation("select at least one file"), limit)
		}
		pw := strings.TrimSpace(form.field("password"))
		if pw == "" {
			return zipError(c, apperr.Validation("enter a password"), limit)
		}
		if confirm, ok := form.fields["password_confirm"]; ok && strings.TrimSpace(confirm) != pw {
			return zipError(c, apperr.Validation("the passwords do not match"), limit)
		}
		mode, err := archive.ParseMode(form.field("mode", "algo"))
		if err != nil {
			return zipError(c, err, limit)
		}
		if len(form.files) == 0 {
			return zipError(c, apperr.Validation("no usable files were uploaded"), limit)
		}

		total := archive.TotalSize(form.files)
		data, err := builder.Build(form.files, pw, mode)
		if err != nil {
			metrics.ArchivesBuilt.WithLabelValues(mode.String(), string(apperr.KindOf(err))).Inc()
			return zipError(c, err, limit)
		}
		metrics.ArchivesBuilt.WithLabelValues(mode.String(), "ok").Inc()
		metrics.ArchiveInputBytes.Observe(float64(total))

		name := archive.ArchiveName(form.field("zip_name"), now())
		c.Response().Header().Set(echo.HeaderContentDisposition,
			mime.FormatMediaType("attachment", map[string]string{"filename": name}))
		c.Response().Header().Set("Cache-Control", "no-store")
		return c.Blob(http.StatusOK, "application/zip", data)
	}
}

// zipError adds the size limit to 413 answers.
func zipError(c echo.Context, err error, limit int64) error {
	if apperr.KindOf(err) != apperr.KindPayloadTooLarge {
		return writeError(c, err)
	}
	return c.JSON(http.StatusRequestEntityTooLarge, errorBody{
		Error: apperr.Message(err, "upload too large"),
		Kind:  string(apperr.KindPayloadTooLarge),
		Limit: limit,
	})
}
