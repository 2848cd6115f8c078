package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucky845/gtipsync/internal/fetch"
	"github.com/lucky845/gtipsync/internal/hosts"
	"github.com/lucky845/gtipsync/internal/model"
	"github.com/lucky845/gtipsync/internal/platform"
	"github.com/lucky845/gtipsync/internal/probe"
	"github.com/lucky845/gtipsync/internal/publish"
	"github.com/lucky845/gtipsync/internal/workspace"
)

type recorder struct {
	calls []string
}

type fakeFetcher struct {
	*recorder
	gotURL string
	err    error
}

func (f *fakeFetcher) Fetch(_ context.Context, t model.AssetTarget, dest string) (*model.DownloadedArchive, error) {
	f.calls = append(f.calls, "fetch")
	f.gotURL = t.URL
	if f.err != nil {
		return nil, f.err
	}
	return &model.DownloadedArchive{Path: dest, Size: 10}, nil
}

type fakeUnpacker struct {
	*recorder
	gotExe string
}

func (f *fakeUnpacker) Unpack(_, ws, exe string) (string, error) {
	f.calls = append(f.calls, "unpack")
	f.gotExe = exe
	return ws + "/" + exe, nil
}

type fakeProber struct {
	*recorder
	result model.ScanResult
	err    error
}

func (f *fakeProber) Run(context.Context, string) (model.ScanResult, error) {
	f.calls = append(f.calls, "probe")
	return f.result, f.err
}

type fakePublisher struct {
	*recorder
	lines []string
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, lines []string) (*model.PublishResult, error) {
	f.calls = append(f.calls, "publish")
	f.lines = lines
	if f.err != nil {
		return nil, f.err
	}
	return &model.PublishResult{HTMLURL: "https://gist.github.com/g"}, nil
}

type harness struct {
	rec *recorder
	f   *fakeFetcher
	u   *fakeUnpacker
	p   *fakeProber
	pub *fakePublisher
	o   *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	paths, err := workspace.Resolve(t.TempDir())
	require.NoError(t, err)

	rec := &recorder{}
	h := &harness{
		rec: rec,
		f:   &fakeFetcher{recorder: rec},
		u:   &fakeUnpacker{recorder: rec},
		p: &fakeProber{recorder: rec, result: hosts.Parse([]string{
			"translate.googleapis.com ...",
			"1.2.3.4 translate.x.com",
			"5.6.7.8 translate-pa.googleapis.com",
		})},
		pub: &fakePublisher{recorder: rec},
	}
	h.o = &Orchestrator{
		Target:    Target{GOOS: "linux", GOARCH: "amd64"},
		Paths:     paths,
		Fetcher:   h.f,
		Unpacker:  h.u,
		Prober:    h.p,
		Publisher: h.pub,
		Log:       zerolog.Nop(),
	}
	return h
}

func TestRunEndToEnd(t *testing.T) {
	h := newHarness(t)
	rep, err := h.o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"fetch", "unpack", "probe", "publish"}, h.rec.calls)
	assert.True(t, strings.HasSuffix(h.f.gotURL, "/1.8/linux-x64.zip"), h.f.gotURL)
	assert.Equal(t, "GoogleTranslateIpCheck", h.u.gotExe)
	assert.Equal(t, []string{"1.2.3.4 translate.x.com", "5.6.7.8 translate-pa.googleapis.com"}, h.pub.lines)
	assert.Equal(t, "5.6.7.8", rep.Scan.BestAddress)
	assert.Equal(t, "https://gist.github.com/g", rep.Result.HTMLURL)
	assert.False(t, rep.Cancelled)
}

func TestRunStageFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
		stage Stage
		calls []string
		check func(t *testing.T, err error)
	}{
		{
			name:  "unsupported platform",
			setup: func(h *harness) { h.o.Target.GOOS = "plan9" },
			stage: StageResolve,
			check: func(t *testing.T, err error) {
				var pe *platform.UnsupportedPlatformError
				assert.True(t, errors.As(err, &pe))
			},
		},
		{
			name:  "unpinned version",
			setup: func(h *harness) { h.o.Target.Version = "2.0" },
			stage: StageResolve,
		},
		{
			name:  "download",
			setup: func(h *harness) { h.f.err = &fetch.DownloadError{URL: "u", StatusCode: 404} },
			stage: StageFetch,
			calls: []string{"fetch"},
		},
		{
			name:  "probe exit",
			setup: func(h *harness) { h.p.err = &probe.ExecutionError{ExitCode: 2} },
			stage: StageProbe,
			calls: []string{"fetch", "unpack", "probe"},
		},
		{
			name:  "no host block",
			setup: func(h *harness) { h.p.err = &probe.IncompleteResultError{}; h.p.result = model.ScanResult{} },
			stage: StageExtract,
			calls: []string{"fetch", "unpack", "probe"},
		},
		{
			name:  "publish auth",
			setup: func(h *harness) { h.pub.err = &publish.AuthError{Missing: []string{"GITHUB_TOKEN"}} },
			stage: StagePublish,
			calls: []string{"fetch", "unpack", "probe", "publish"},
			check: func(t *testing.T, err error) {
				var ae *publish.AuthError
				assert.True(t, errors.As(err, &ae))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h)
			_, err := h.o.Run(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.stage, FailedStage(err))
			assert.Equal(t, tt.calls, h.rec.calls)
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

type notReadyPublisher struct{ fakePublisher }

func (notReadyPublisher) Ready() error { return &publish.AuthError{Missing: []string{"GIST_ID"}} }

func TestRunChecksPublisherFirst(t *testing.T) {
	h := newHarness(t)
	h.o.Publisher = &notReadyPublisher{fakePublisher{recorder: h.rec}}

	_, err := h.o.Run(context.Background())
	assert.Equal(t, StagePublish, FailedStage(err))
	assert.Empty(t, h.rec.calls)
}

func TestRunAllowsUnpinnedWhenAsked(t *testing.T) {
	h := newHarness(t)
	h.o.Target.Version = "1.10"
	h.o.Target.AllowUnpinned = true
	h.o.Target.GOOS, h.o.Target.GOARCH = "windows", "amd64"

	_, err := h.o.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(h.f.gotURL, "/1.10/win-x64.TurboSyn.zip"), h.f.gotURL)
	assert.Equal(t, "GoogleTranslateIpCheck.exe", h.u.gotExe)
}

func TestRunCancelledSkipsPublish(t *testing.T) {
	h := newHarness(t)
	h.p.result = model.ScanResult{Outcome: model.OutcomeCancelled}

	rep, err := h.o.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Cancelled)
	assert.Nil(t, rep.Result)
	assert.Equal(t, []string{"fetch", "unpack", "probe"}, h.rec.calls)
}

func TestExitCode(t *testing.T) {
	failure := &StageError{Stage: StageFetch, Err: errors.New("x")}
	assert.Equal(t, 0, ExitCode(false, nil))
	assert.Equal(t, 1, ExitCode(false, failure))
	assert.Equal(t, 0, ExitCode(true, failure))
	assert.Equal(t, 0, ExitCode(true, nil))
}
