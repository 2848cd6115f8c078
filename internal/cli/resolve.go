package cli

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucky845/gtipsync/internal/platform"
)

type resolveFlags struct {
	goos    string
	goarch  string
	version string
	base    string
	json    bool
	list    bool
}

func (a *app) resolveCommand() *cobra.Command {
	f := &resolveFlags{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the probe download URL for a platform",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if f.list {
				_, err := fmt.Fprintln(a.stdout, strings.Join(platform.Supported(), "\n"))
				return err
			}
			tag := f.version
			if tag == "" {
				tag = platform.PinnedVersion
			}
			target, err := platform.Resolve(f.goos, f.goarch, tag, f.base)
			if err != nil {
				return err
			}
			if f.json {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(target)
			}
			_, err = fmt.Fprintln(a.stdout, target.URL)
			return err
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.goos, "os", runtime.GOOS, "target operating system (linux, darwin/osx, windows/win)")
	fl.StringVar(&f.goarch, "arch", runtime.GOARCH, "target architecture (amd64/x64, arm64, 386/x86)")
	fl.StringVar(&f.version, "probe-version", "", "probe release tag (default pinned)")
	fl.StringVar(&f.base, "download-base", "", "release download base URL")
	fl.BoolVar(&f.json, "json", false, "print the resolved asset as JSON")
	fl.BoolVar(&f.list, "list", false, "list supported os/arch pairs")
	return cmd
}
