// Package storage persists uploaded item images.
//
// Files are stored under generated names (<uuid><ext>) so client-supplied
// names never reach the filesystem or object keys. The original name is
// returned to the caller for recording on the item.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// PublicPrefix is the URL path under which stored images are served.
const PublicPrefix = "/images/"

// ErrNotFound is returned by Open and Delete when no file has the given name.
var ErrNotFound = errors.New("storage: file not found")

// ErrInvalidName is returned for names that were not produced by GenerateName.
var ErrInvalidName = errors.New("storage: invalid file name")

// Upload is a file received from a client. Its content type is detected
// from the bytes; the client's declared type is not trusted.
type Upload struct {
	OriginalName string
	Size         int64 // -1 when unknown
	Body         io.Reader
}

// StoredFile describes a file after it has been written.
type StoredFile struct {
	Name        string
	Size        int64
	ContentType string
}

// PublicPath returns the URL path the file is served from.
func (f StoredFile) PublicPath() string {
	return PublicPrefix + f.Name
}

// ImageStore saves and removes uploaded images.
type ImageStore interface {
	Save(ctx context.Context, u Upload) (StoredFile, error)
	Open(ctx context.Context, name string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, name string) error
	Ping(ctx context.Context) error
}

var (
	extPattern  = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)
	namePattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}(\.[a-z0-9]{1,10})?$`)
)

// GenerateName returns a fresh opaque storage name, keeping the extension of
// original when it is short and alphanumeric.
func GenerateName(original string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(original, "\\", "/")))
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	return uuid.NewString() + ext
}

// ValidName reports whether name could have been produced by GenerateName.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// sniffLen is how much of a file is inspected to detect its content type.
const sniffLen = 3072

// Sniff reads the head of u.Body, detects the content type and returns a
// reader that replays the head before the rest of the body.
func Sniff(u Upload) (string, io.Reader, error) {
	head, err := readHead(u.Body)
	if err != nil {
		return "", nil, err
	}
	return ContentType(head, u.OriginalName), io.MultiReader(bytes.NewReader(head), u.Body), nil
}

func readHead(r io.Reader) ([]byte, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("storage: read upload: %w", err)
	}
	return head[:n], nil
}

// ContentType returns the image type detected from head. Content that is
// only recognised as text or raw bytes takes the image type of name's
// extension; anything else is served as application/octet-stream.
func ContentType(head []byte, name string) string {
	mt := mimetype.Detect(head)
	if strings.HasPrefix(mt.String(), "image/") {
		return mt.String()
	}
	if mt.Is("text/plain") || mt.Is("application/octet-stream") {
		byExt := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
		if strings.HasPrefix(byExt, "image/") {
			return byExt
		}
	}
	return "application/octet-stream"
}
