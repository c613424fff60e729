// Package gdrive reads Google Drive documents with a stored Google credential.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/agentllm/agentllm/internal/logging"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Google Workspace MIME types and the format each is exported to.
const (
	MimeDocument     = "application/vnd.google-apps.document"
	MimeSpreadsheet  = "application/vnd.google-apps.spreadsheet"
	MimePresentation = "application/vnd.google-apps.presentation"
)

var exportFormats = map[string]string{
	MimeDocument:     "text/markdown",
	MimeSpreadsheet:  "text/csv",
	MimePresentation: "text/plain",
}

// MaxContentSize bounds how much of a document is read into memory.
const MaxContentSize = 10 << 20

// DefaultTimeout caps each Drive and token endpoint request, body included.
const DefaultTimeout = 60 * time.Second

var httpTimeout = DefaultTimeout

func timeoutClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

var (
	ErrInvalidFileID = errors.New("not a drive url or file id")
	ErrTooLarge      = errors.New("document exceeds size limit")
)

var (
	pathIDPattern  = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)
	queryIDPattern = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	folderPattern  = regexp.MustCompile(`/folders/([a-zA-Z0-9_-]+)`)
	bareIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]{10,}$`)
)

// ExtractFileID accepts a docs.google.com or drive.google.com URL, or a bare
// file id.
func ExtractFileID(urlOrID string) (string, error) {
	for _, re := range []*regexp.Regexp{pathIDPattern, queryIDPattern, folderPattern} {
		if m := re.FindStringSubmatch(urlOrID); m != nil {
			return m[1], nil
		}
	}
	if bareIDPattern.MatchString(urlOrID) {
		return urlOrID, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFileID, urlOrID)
}

// User is the authenticated Drive account.
type User struct {
	DisplayName  string `json:"display_name"`
	EmailAddress string `json:"email"`
	PhotoLink    string `json:"photo_link,omitempty"`
}

// Document is the exported content of one file.
type Document struct {
	ID       string
	Name     string
	MimeType string
	// Format is the MIME type of Content.
	Format  string
	Content string
}

type Exporter struct {
	svc *drive.Service
	log logging.Logger
}

// NewExporter builds a Drive client authorized by ts with a bounded request
// time. Extra client options (endpoint, http client) are appended last and
// win.
func NewExporter(ctx context.Context, ts oauth2.TokenSource, log logging.Logger, opts ...option.ClientOption) (*Exporter, error) {
	if log == nil {
		log = logging.Nop()
	}
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = httpTimeout
	all := append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := drive.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Exporter{svc: svc, log: log}, nil
}

// DocumentContent exports Docs as markdown, Sheets as CSV and Slides as
// plain text. Any other file is downloaded as is.
func (e *Exporter) DocumentContent(ctx context.Context, urlOrID string) (*Document, error) {
	id, err := ExtractFileID(urlOrID)
	if err != nil {
		return nil, err
	}

	f, err := e.svc.Files.Get(id).Fields("id", "name", "mimeType").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", id, err)
	}
	doc := &Document{ID: f.Id, Name: f.Name, MimeType: f.MimeType, Format: f.MimeType}

	var resp *http.Response
	if format, ok := exportFormats[f.MimeType]; ok {
		doc.Format = format
		resp, err = e.svc.Files.Export(id, format).Context(ctx).Download()
	} else {
		resp, err = e.svc.Files.Get(id).SupportsAllDrives(true).Context(ctx).Download()
	}
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", id, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxContentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", id, err)
	}
	if len(b) > MaxContentSize {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, id)
	}
	doc.Content = string(b)

	e.log.Info(ctx, "drive document retrieved", "file_id", id, "mime_type", f.MimeType, "size", len(b))
	return doc, nil
}

// UserInfo returns the account the token belongs to.
func (e *Exporter) UserInfo(ctx context.Context) (*User, error) {
	about, err := e.svc.About.Get().Fields("user").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get drive user: %w", err)
	}
	if about.User == nil {
		return nil, errors.New("drive returned no user")
	}
	return &User{
		DisplayName:  about.User.DisplayName,
		EmailAddress: about.User.EmailAddress,
		PhotoLink:    about.User.PhotoLink,
	}, nil
}
