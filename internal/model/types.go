package model

import (
	"strings"
	"time"
)

// AssetTarget is the probe release asset selected for the running platform.
type AssetTarget struct {
	OS        string `json:"os"`   // release OS token (linux, osx, win)
	Arch      string `json:"arch"` // release arch token (x64, arm64, x86)
	Version   string `json:"version"`
	AssetName string `json:"assetName"`
	URL       string `json:"url"`
}

// DownloadedArchive is a verified archive on local disk.
type DownloadedArchive struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// HostEntry is one hosts-mapping line emitted by the probe.
type HostEntry struct {
	Address string `json:"address"`
	RawLine string `json:"rawLine"`
}

// Outcome describes how a probe session ended when it did not fail.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled" // operator declined the prompt; not an error
)

// ScanResult is what a probe session produced.
type ScanResult struct {
	Outcome     Outcome     `json:"outcome"`
	Entries     []HostEntry `json:"entries"`
	BestAddress string      `json:"bestAddress"`
	Transcript  []string    `json:"-"`
}

// Lines returns the raw hosts-mapping lines in the order they were observed.
func (r *ScanResult) Lines() []string {
	out := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e.RawLine)
	}
	return out
}

// UTC8 is the fixed zone used for document timestamps.
var UTC8 = time.FixedZone("UTC+8", 8*60*60)

const (
	documentTimeLayout = "2006-01-02 15:04:05"
	cadenceNote        = "# 通过 GitHub Actions 每6小时自动更新一次"
	projectNote        = "# 项目地址：https://github.com/lucky845/GoogleTranslateIpCheck"
)

// PublishDocument is the full text published to the remote gist file.
// It is rebuilt from scratch on every run and never merged with a prior version.
type PublishDocument struct {
	GeneratedAt time.Time
	Entries     []string
}

// NewPublishDocument stamps entries with the given wall-clock time in UTC+8.
func NewPublishDocument(now time.Time, entries []string) PublishDocument {
	return PublishDocument{
		GeneratedAt: now.In(UTC8),
		Entries:     append([]string(nil), entries...),
	}
}

// Header returns the comment block that precedes the entries.
func (d PublishDocument) Header() string {
	return strings.Join([]string{
		"# 最后更新时间：" + d.GeneratedAt.In(UTC8).Format(documentTimeLayout) + " (UTC+8)",
		cadenceNote,
		projectNote,
	}, "\n")
}

// Render returns header, a blank line, then one entry per line.
func (d PublishDocument) Render() string {
	return d.Header() + "\n\n" + strings.Join(d.Entries, "\n")
}

// RemoteCredential authorizes writes to the remote document store.
type RemoteCredential struct {
	Token      string `json:"-" validate:"required"`
	DocumentID string `json:"documentId" validate:"required"`
	Username   string `json:"username,omitempty"`
}

// String never includes the token.
func (c RemoteCredential) String() string {
	tok := "<empty>"
	if c.Token != "" {
		tok = "<redacted>"
	}
	return "RemoteCredential{token=" + tok + ", document=" + c.DocumentID + "}"
}

// PublishResult holds the URLs a consumer needs after a successful publish.
type PublishResult struct {
	HTMLURL      string `json:"htmlUrl"`
	RawURL       string `json:"rawUrl"`
	SubscribeURL string `json:"subscribeUrl,omitempty"` // stable raw URL for hosts sync clients
}
