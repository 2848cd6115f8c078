package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lucky845/gtipsync/internal/config"
	"github.com/lucky845/gtipsync/internal/fetch"
	"github.com/lucky845/gtipsync/internal/host/github"
	"github.com/lucky845/gtipsync/internal/logger"
	"github.com/lucky845/gtipsync/internal/model"
	"github.com/lucky845/gtipsync/internal/orchestrator"
	"github.com/lucky845/gtipsync/internal/probe"
	"github.com/lucky845/gtipsync/internal/publish"
	"github.com/lucky845/gtipsync/internal/ui"
	"github.com/lucky845/gtipsync/internal/unpack"
	"github.com/lucky845/gtipsync/internal/verify"
	"github.com/lucky845/gtipsync/internal/workspace"
)

type runFlags struct {
	mode          string
	version       string
	allowUnpinned bool
	downloadBase  string
	workDir       string
	timeout       time.Duration
	elevate       bool
	launcher      string
	gistID        string
	gistFile      string
	username      string
	dryRun        bool
	json          bool
}

func (a *app) runCommand() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Download the probe, scan, and publish the translate hosts lines",
		Long: "run executes one full cycle. Unattended runs (CI, no terminal) answer the probe's hosts prompt " +
			"with \"n\" and exit non-zero on failure. Interactive runs ask the operator and always exit 0.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.execRun(cmd, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.mode, "mode", "", "interactive or unattended (default: interactive on a terminal outside CI)")
	fl.StringVar(&f.version, "probe-version", "", "probe release tag (default pinned)")
	fl.BoolVar(&f.allowUnpinned, "allow-unpinned", false, "allow a probe release other than the pinned one")
	fl.StringVar(&f.downloadBase, "download-base", "", "release download base URL")
	fl.StringVar(&f.workDir, "work-dir", "", "directory for downloads and the extracted probe (default user cache dir)")
	fl.DurationVar(&f.timeout, "timeout", 0, "probe session timeout (default 10m)")
	fl.BoolVar(&f.elevate, "elevate", false, "run the probe through sudo")
	fl.StringVar(&f.launcher, "launcher", "", "probe transport: pty or pipe")
	fl.StringVar(&f.gistID, "gist-id", "", "gist to update (default $GIST_ID)")
	fl.StringVar(&f.gistFile, "gist-file", "", "file name inside the gist")
	fl.StringVar(&f.username, "username", "", "gist owner, used for the subscribe URL (default $GITHUB_USERNAME)")
	fl.BoolVar(&f.dryRun, "dry-run", false, "print the document instead of updating the gist")
	fl.BoolVar(&f.json, "json", false, "print a JSON report on stdout")
	return cmd
}

func (a *app) loadConfig(cmd *cobra.Command, f *runFlags) (*config.Config, error) {
	cfg, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("mode") {
		cfg.Mode = config.Mode(f.mode)
	}
	if changed("probe-version") {
		cfg.Version = f.version
	}
	if changed("allow-unpinned") {
		cfg.AllowUnpinned = f.allowUnpinned
	}
	if changed("download-base") {
		cfg.DownloadBase = f.downloadBase
	}
	if changed("work-dir") {
		cfg.WorkDir = f.workDir
	}
	if changed("timeout") {
		cfg.SessionTimeout = f.timeout
	}
	if changed("elevate") {
		cfg.Elevate = f.elevate
	}
	if changed("launcher") {
		cfg.Launcher = f.launcher
	}
	if changed("gist-id") {
		cfg.Gist.ID = f.gistID
	}
	if changed("gist-file") {
		cfg.Gist.FileName = f.gistFile
	}
	if changed("username") {
		cfg.Gist.Username = f.username
	}
	cfg.DryRun = f.dryRun
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}

	stdinFile, _ := a.stdin.(*os.File)
	cfg.ResolveMode(stdinFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) execRun(cmd *cobra.Command, f *runFlags) error {
	cfg, err := a.loadConfig(cmd, f)
	if err != nil {
		return err
	}
	interactive := cfg.Mode == config.ModeInteractive

	base, err := logger.New(cfg.Log, a.stderr)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	runID := uuid.NewString()
	log := base.With().Str("run_id", runID).Str("mode", string(cfg.Mode)).Logger()

	paths, err := workspace.Resolve(cfg.WorkDir)
	if err != nil {
		return err
	}
	if err := paths.Ensure(); err != nil {
		return err
	}
	unlock, err := paths.Lock()
	if err != nil {
		return err
	}
	defer unlock()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Elevate && interactive {
		if err := probe.PrimeSudo(ctx, a.stdin, a.stdout, a.stderr); err != nil {
			return err
		}
	}

	orch, err := a.buildPipeline(cfg, paths, f.json, log)
	if err != nil {
		return err
	}

	log.Info().Str("workspace", paths.Base).Msg("starting run")
	rep, runErr := orch.Run(ctx)
	a.report(cfg, runID, rep, runErr, f.json)
	a.exitCode = orchestrator.ExitCode(interactive, runErr)
	return nil
}

func (a *app) buildPipeline(cfg *config.Config, paths workspace.Paths, jsonOut bool, log zerolog.Logger) (*orchestrator.Orchestrator, error) {
	interactive := cfg.Mode == config.ModeInteractive
	client := github.NewClient(cfg.Gist.Token, github.UserAgent(Version), github.WithAPIBase(cfg.Gist.APIBase))

	fetcher := fetch.New(client,
		fetch.WithPins(fetch.Pins{
			SHA256:         cfg.Verify.ArchiveSHA256,
			ChecksumURL:    cfg.Verify.ChecksumURL,
			MinisignPubKey: cfg.Verify.MinisignPubKey,
			MinisignSigURL: cfg.Verify.MinisignSigURL,
		}),
		fetch.WithProgress(progressLogger(logger.WithComponent(log, "fetch"))),
		fetch.WithLogger(logger.WithComponent(log, "fetch")),
	)

	launcher, err := probe.LauncherByName(cfg.Launcher)
	if err != nil {
		return nil, err
	}
	var responder probe.Responder = probe.DeclineResponder{}
	if interactive {
		responder = probe.NewInteractiveResponder(a.stdin, a.stdout)
	}
	mirror := a.stdout
	if jsonOut {
		mirror = a.stderr
	}
	prober := probe.NewController(probe.Options{
		Launcher:           launcher,
		Responder:          responder,
		SuppressHostsWrite: !interactive,
		Elevate:            cfg.Elevate,
		Timeout:            cfg.SessionTimeout,
		Observer:           func(line string) { _, _ = fmt.Fprintln(mirror, ui.ProbeLine(line)) },
		Logger:             logger.WithComponent(log, "probe"),
	})

	pubOpts := []publish.Option{
		publish.WithFileName(cfg.Gist.FileName),
		publish.WithLogger(logger.WithComponent(log, "publish")),
	}
	if cfg.DryRun {
		pubOpts = append(pubOpts, publish.WithDryRun(mirror))
	}

	return &orchestrator.Orchestrator{
		Target: orchestrator.Target{
			GOOS:          runtime.GOOS,
			GOARCH:        runtime.GOARCH,
			Version:       cfg.Version,
			AllowUnpinned: cfg.AllowUnpinned,
			DownloadBase:  cfg.DownloadBase,
		},
		Paths:     paths,
		Fetcher:   fetcher,
		Unpacker:  unpack.New(logger.WithComponent(log, "unpack")),
		Prober:    prober,
		Publisher: publish.New(client, cfg.Credential(), pubOpts...),
		Log:       logger.WithComponent(log, "orchestrator"),
	}, nil
}

// progressLogger logs every 10% when the size is known, otherwise every MiB.
func progressLogger(log zerolog.Logger) fetch.ProgressFunc {
	var next int64
	return func(done, total int64) {
		if done < next {
			return
		}
		if total > 0 {
			log.Debug().Str("done", verify.FormatSize(done)).Str("total", verify.FormatSize(total)).
				Int64("percent", done*100/total).Msg("downloading")
			next = done + total/10
			return
		}
		log.Debug().Str("done", verify.FormatSize(done)).Msg("downloading")
		next = done + 1<<20
	}
}

type jsonReport struct {
	RunID       string               `json:"runId"`
	Mode        string               `json:"mode"`
	OK          bool                 `json:"ok"`
	Cancelled   bool                 `json:"cancelled"`
	Stage       string               `json:"stage,omitempty"`
	Error       string               `json:"error,omitempty"`
	Asset       *model.AssetTarget   `json:"asset,omitempty"`
	BestAddress string               `json:"bestAddress,omitempty"`
	Lines       []string             `json:"lines,omitempty"`
	Result      *model.PublishResult `json:"result,omitempty"`
}

func (a *app) report(cfg *config.Config, runID string, rep *orchestrator.Report, runErr error, jsonOut bool) {
	if rep == nil {
		rep = &orchestrator.Report{}
	}
	if jsonOut {
		out := jsonReport{
			RunID:       runID,
			Mode:        string(cfg.Mode),
			OK:          runErr == nil,
			Cancelled:   rep.Cancelled,
			Stage:       string(orchestrator.FailedStage(runErr)),
			BestAddress: rep.Scan.BestAddress,
			Lines:       rep.Scan.Lines(),
			Result:      rep.Result,
		}
		if rep.Asset.URL != "" {
			out.Asset = &rep.Asset
		}
		if runErr != nil {
			out.Error = runErr.Error()
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}

	w := a.stdout
	switch {
	case runErr != nil:
		_, _ = fmt.Fprintln(a.stderr, ui.ErrorMsg("%v", runErr))
		var authErr *publish.AuthError
		if errors.As(runErr, &authErr) {
			_, _ = fmt.Fprintln(a.stderr, ui.Muted("  set GITHUB_TOKEN and GIST_ID in the environment or a .env file"))
		}
	case rep.Cancelled:
		_, _ = fmt.Fprintln(w, ui.WarnMsg("cancelled; the gist was not updated"))
	case cfg.DryRun:
		_, _ = fmt.Fprintln(w, ui.SuccessMsg("dry run: %d lines, best address %s", len(rep.Scan.Entries), rep.Scan.BestAddress))
	default:
		_, _ = fmt.Fprintln(w, ui.SuccessMsg("published %d lines, best address %s", len(rep.Scan.Entries), ui.Accent(rep.Scan.BestAddress)))
		if rep.Result != nil {
			_, _ = fmt.Fprint(w, ui.KeyValues("  ",
				ui.KV("gist", rep.Result.HTMLURL),
				ui.KV("raw", rep.Result.RawURL),
				ui.KV("subscribe", rep.Result.SubscribeURL),
			))
		}
	}
}
