// Package publish renders the hosts document and writes it to a gist.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/lucky845/gtipsync/internal/host/github"
	"github.com/lucky845/gtipsync/internal/model"
)

const (
	DefaultFileName = "google_translate_ips.txt"
	rawHost         = "https://gist.githubusercontent.com"
)

// GistUpdater is the slice of the GitHub client the publisher needs.
type GistUpdater interface {
	UpdateGistFile(ctx context.Context, gistID, filename, content string) (*github.Gist, error)
}

type Publisher struct {
	client   GistUpdater
	cred     model.RemoteCredential
	fileName string
	now      func() time.Time
	dryRun   io.Writer
	validate *validator.Validate
	log      zerolog.Logger
}

type Option func(*Publisher)

func WithFileName(name string) Option {
	return func(p *Publisher) {
		if name != "" {
			p.fileName = name
		}
	}
}

func WithClock(now func() time.Time) Option { return func(p *Publisher) { p.now = now } }

// WithDryRun writes the rendered document to w instead of sending it.
func WithDryRun(w io.Writer) Option { return func(p *Publisher) { p.dryRun = w } }

func WithLogger(l zerolog.Logger) Option { return func(p *Publisher) { p.log = l } }

func New(client GistUpdater, cred model.RemoteCredential, opts ...Option) *Publisher {
	p := &Publisher{
		client:   client,
		cred:     cred,
		fileName: DefaultFileName,
		now:      time.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Document stamps lines with the current time.
func (p *Publisher) Document(lines []string) model.PublishDocument {
	return model.NewPublishDocument(p.now(), lines)
}

// Publish replaces the gist file with a freshly rendered document.
func (p *Publisher) Publish(ctx context.Context, lines []string) (*model.PublishResult, error) {
	doc := p.Document(lines)
	body := doc.Render()

	if p.dryRun != nil {
		if _, err := fmt.Fprintln(p.dryRun, body); err != nil {
			return nil, fmt.Errorf("write dry-run document: %w", err)
		}
		p.log.Info().Int("lines", len(lines)).Msg("dry run; gist not updated")
		return &model.PublishResult{SubscribeURL: p.SubscribeURL()}, nil
	}

	if err := p.checkCredential(); err != nil {
		return nil, err
	}

	p.log.Info().Str("gist", p.cred.DocumentID).Str("file", p.fileName).Int("lines", len(lines)).Msg("updating gist")
	gist, err := p.client.UpdateGistFile(ctx, p.cred.DocumentID, p.fileName, body)
	if err != nil {
		var apiErr *github.APIError
		if errors.As(err, &apiErr) {
			return nil, &TransportError{StatusCode: apiErr.StatusCode, Cause: err}
		}
		return nil, &TransportError{Cause: err}
	}

	res := &model.PublishResult{HTMLURL: gist.HTMLURL, SubscribeURL: p.SubscribeURL()}
	if f, ok := gist.Files[p.fileName]; ok {
		res.RawURL = f.RawURL
	}
	return res, nil
}

// Ready reports whether Publish could send anything. Dry runs are always ready.
func (p *Publisher) Ready() error {
	if p.dryRun != nil {
		return nil
	}
	return p.checkCredential()
}

// SubscribeURL is the stable raw URL hosts sync tools can poll, or "" when no
// username is configured.
func (p *Publisher) SubscribeURL() string {
	if p.cred.Username == "" || p.cred.DocumentID == "" {
		return ""
	}
	return rawHost + "/" + url.PathEscape(p.cred.Username) + "/" + url.PathEscape(p.cred.DocumentID) + "/raw"
}

func (p *Publisher) checkCredential() error {
	err := p.validate.Struct(p.cred)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("check credential: %w", err)
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, credentialField(fe.Field()))
	}
	return &AuthError{Missing: missing}
}

func credentialField(field string) string {
	switch field {
	case "Token":
		return "GITHUB_TOKEN"
	case "DocumentID":
		return "GIST_ID"
	}
	return field
}
