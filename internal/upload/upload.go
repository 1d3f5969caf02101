// Package upload stages files from incoming requests before a handler runs.
// Each file part is written to the receiver's directory as
// "<unix-ms>-<original name>" and described by a File.
package upload

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tolet/service/internal/validate"
)

const defaultMaxMemory = 32 << 20

// File describes one staged upload.
type File struct {
	Field        string
	Filename     string // generated name, "<unix-ms>-<original>"
	Path         string // absolute staging path
	OriginalName string
	Size         int64
	ContentType  string
}

// Form is the parsed request: loosely typed text fields plus staged files.
type Form struct {
	Fields map[string]any
	Files  []File
}

// Discard removes every staged file. Missing files are ignored.
func (f *Form) Discard() {
	for _, file := range f.Files {
		_ = os.Remove(file.Path)
	}
}

// Receiver parses request bodies and stages file parts under dir.
type Receiver struct {
	dir       string
	maxMemory int64
	now       func() time.Time
}

// NewReceiver creates dir if needed and returns a Receiver staging into it.
func NewReceiver(dir string) (*Receiver, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Receiver{dir: abs, maxMemory: defaultMaxMemory, now: time.Now}, nil
}

// Dir returns the absolute staging directory.
func (rc *Receiver) Dir() string {
	return rc.dir
}

// Receive parses r. For multipart bodies, at most maxFiles parts named field
// are staged; a file under any other name is rejected. JSON and urlencoded
// bodies only yield Fields. Client mistakes are returned as *validate.Error.
func (rc *Receiver) Receive(r *http.Request, field string, maxFiles int) (*Form, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		return rc.receiveMultipart(r, field, maxFiles)
	case "application/json":
		fields := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil && !errors.Is(err, io.EOF) {
			if isTooLarge(err) {
				return nil, err
			}
			return nil, validate.Errorf("invalid JSON body: %v", err)
		}
		return &Form{Fields: fields}, nil
	default:
		if err := r.ParseForm(); err != nil {
			if isTooLarge(err) {
				return nil, err
			}
			return nil, validate.Errorf("invalid form body: %v", err)
		}
		return &Form{Fields: textFields(r.PostForm)}, nil
	}
}

func (rc *Receiver) receiveMultipart(r *http.Request, field string, maxFiles int) (*Form, error) {
	if err := r.ParseMultipartForm(rc.maxMemory); err != nil {
		if isTooLarge(err) {
			return nil, err
		}
		return nil, validate.Errorf("invalid multipart body: %v", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	form := &Form{Fields: textFields(r.MultipartForm.Value)}

	for name, headers := range r.MultipartForm.File {
		if name != field {
			return nil, validate.Errorf("Unexpected field %s", name)
		}
		if len(headers) > maxFiles {
			return nil, validate.Errorf("Too many files: at most %d allowed in %s", maxFiles, field)
		}
	}

	for _, h := range r.MultipartForm.File[field] {
		file, err := rc.stage(field, h)
		if err != nil {
			form.Discard()
			return nil, err
		}
		form.Files = append(form.Files, file)
	}
	return form, nil
}

func (rc *Receiver) stage(field string, h *multipart.FileHeader) (File, error) {
	original := cleanName(h.Filename)

	src, err := h.Open()
	if err != nil {
		return File{}, fmt.Errorf("open upload %s: %w", original, err)
	}
	defer src.Close()

	name, dest, dst, err := rc.create(original)
	if err != nil {
		return File{}, err
	}

	size, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return File{}, fmt.Errorf("write upload %s: %w", name, err)
	}

	return File{
		Field:        field,
		Filename:     name,
		Path:         dest,
		OriginalName: h.Filename,
		Size:         size,
		ContentType:  h.Header.Get("Content-Type"),
	}, nil
}

// maxNameAttempts bounds the disambiguated names tried for one file.
const maxNameAttempts = 100

// create opens a new staging file named "<unix-ms>-<original>". Files are never
// overwritten: when that name is taken, typically by another part of the same
// request with the same client filename, "<unix-ms>-<n>-<original>" is tried.
func (rc *Receiver) create(original string) (string, string, *os.File, error) {
	ms := rc.now().UnixMilli()
	name := fmt.Sprintf("%d-%s", ms, original)
	for n := 1; ; n++ {
		dest := filepath.Join(rc.dir, name)
		dst, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return name, dest, dst, nil
		}
		if !errors.Is(err, fs.ErrExist) || n >= maxNameAttempts {
			return "", "", nil, fmt.Errorf("stage upload %s: %w", name, err)
		}
		name = fmt.Sprintf("%d-%d-%s", ms, n, original)
	}
}

// cleanName reduces a client-supplied filename to a safe base name.
func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	switch name {
	case ".", "..", "/", "":
		return "file"
	}
	return name
}

// textFields flattens form values: one value becomes a string, several a list.
func textFields(values map[string][]string) map[string]any {
	fields := make(map[string]any, len(values))
	for k, vs := range values {
		switch len(vs) {
		case 0:
		case 1:
			fields[k] = vs[0]
		default:
			list := make([]any, len(vs))
			for i, v := range vs {
				list[i] = v
			}
			fields[k] = list
		}
	}
	return fields
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
