// Package orchestrator runs the resolve, fetch, unpack, probe, extract and
// publish stages in order and stops at the first failure.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lucky845/gtipsync/internal/model"
	"github.com/lucky845/gtipsync/internal/platform"
	"github.com/lucky845/gtipsync/internal/probe"
	"github.com/lucky845/gtipsync/internal/workspace"
	"github.com/lucky845/gtipsync/pkg/version"
)

type Stage string

const (
	StageResolve Stage = "resolve"
	StageFetch   Stage = "fetch"
	StageUnpack  Stage = "unpack"
	StageProbe   Stage = "probe"
	StageExtract Stage = "extract"
	StagePublish Stage = "publish"
)

// StageError records which stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

type Fetcher interface {
	Fetch(ctx context.Context, target model.AssetTarget, dest string) (*model.DownloadedArchive, error)
}

type Unpacker interface {
	Unpack(archive, workspace, exeName string) (string, error)
}

type Prober interface {
	Run(ctx context.Context, exePath string) (model.ScanResult, error)
}

type Publisher interface {
	Publish(ctx context.Context, lines []string) (*model.PublishResult, error)
}

// readiness is implemented by publishers that can detect missing credentials
// before the probe spends minutes scanning.
type readiness interface {
	Ready() error
}

// Target names the probe release to run.
type Target struct {
	GOOS          string
	GOARCH        string
	Version       string
	AllowUnpinned bool
	DownloadBase  string
}

type Orchestrator struct {
	Target    Target
	Paths     workspace.Paths
	Fetcher   Fetcher
	Unpacker  Unpacker
	Prober    Prober
	Publisher Publisher
	Log       zerolog.Logger
}

// Report describes a finished run. Cancelled runs carry no publish result.
type Report struct {
	Asset      model.AssetTarget
	Archive    *model.DownloadedArchive
	Executable string
	Scan       model.ScanResult
	Result     *model.PublishResult
	Cancelled  bool
}

// Run executes every stage once. The returned report holds whatever was
// produced before a failure.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	rep := &Report{}
	log := o.Log
	if o.Target.Version == "" {
		o.Target.Version = platform.PinnedVersion
	}

	if r, ok := o.Publisher.(readiness); ok {
		if err := r.Ready(); err != nil {
			return rep, &StageError{Stage: StagePublish, Err: err}
		}
	}

	decision, msg := version.CheckPin(platform.PinnedVersion, o.Target.Version, o.Target.AllowUnpinned)
	if decision == version.DecisionRefuse {
		return rep, &StageError{Stage: StageResolve, Err: errors.New(msg)}
	}
	log.Info().Str("decision", string(decision)).Msg(msg)

	asset, err := platform.Resolve(o.Target.GOOS, o.Target.GOARCH, o.Target.Version, o.Target.DownloadBase)
	if err != nil {
		return rep, &StageError{Stage: StageResolve, Err: err}
	}
	rep.Asset = asset
	log.Info().Str("asset", asset.AssetName).Str("url", asset.URL).Msg("resolved probe asset")

	archive, err := o.Fetcher.Fetch(ctx, asset, o.Paths.ArchivePath(asset.OS, asset.Arch))
	if err != nil {
		return rep, &StageError{Stage: StageFetch, Err: err}
	}
	rep.Archive = archive

	exe, err := o.Unpacker.Unpack(archive.Path, o.Paths.Extract, platform.ExecutableName(o.Target.GOOS))
	if err != nil {
		return rep, &StageError{Stage: StageUnpack, Err: err}
	}
	rep.Executable = exe

	scan, err := o.Prober.Run(ctx, exe)
	rep.Scan = scan
	if err != nil {
		var incomplete *probe.IncompleteResultError
		if errors.As(err, &incomplete) {
			return rep, &StageError{Stage: StageExtract, Err: err}
		}
		return rep, &StageError{Stage: StageProbe, Err: err}
	}
	if scan.Outcome == model.OutcomeCancelled {
		rep.Cancelled = true
		log.Info().Msg("run cancelled by operator; nothing published")
		return rep, nil
	}

	lines := scan.Lines()
	if len(lines) == 0 || scan.BestAddress == "" {
		return rep, &StageError{Stage: StageExtract, Err: &probe.IncompleteResultError{Lines: len(scan.Transcript)}}
	}
	log.Info().Int("lines", len(lines)).Str("best", scan.BestAddress).Msg("extracted host lines")

	res, err := o.Publisher.Publish(ctx, lines)
	if err != nil {
		return rep, &StageError{Stage: StagePublish, Err: err}
	}
	rep.Result = res
	return rep, nil
}

// FailedStage returns the stage recorded in err, or "".
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// ExitCode maps a run result to a process status. Only unattended runs report
// failure through the exit status.
func ExitCode(interactive bool, err error) int {
	if err == nil || interactive {
		return 0
	}
	return 1
}
