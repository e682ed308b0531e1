package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ZebulonRouseFrantzich/artifetch/internal/artifact"
	"github.com/ZebulonRouseFrantzich/artifetch/internal/config"
	"github.com/ZebulonRouseFrantzich/artifetch/internal/logging"
	"github.com/ZebulonRouseFrantzich/artifetch/internal/platform"
)

const globalUsage = `Download prebuilt third-party artifacts for this machine.

Entries in the configuration file name an artifact, the platform and
architecture it is built for, where to download it, its SHA-256 and the
directory to place it in. Only entries named with --install and matching the
running OS and architecture are installed. An entry whose target already
exists is left alone, so delete the target to force a reinstall.

By default the configuration is read from artifacts.json next to the
artifetch executable. Targets containing ".." are resolved against that
same directory.
`

type rootOptions struct {
	install   []string
	config    string
	baseDir   string
	list      bool
	logLevel  string
	logFormat string
	timeout   time.Duration
	retries   int
}

func (o *rootOptions) addFlags(f *pflag.FlagSet) {
	f.StringArrayVar(&o.install, "install", nil, "artifact names to install, comma or space separated (repeatable)")
	f.StringVar(&o.config, "config", "", "configuration file (default: artifacts.json in the base directory)")
	f.StringVar(&o.baseDir, "base-dir", "", "directory that anchors relative targets (default: directory of the executable)")
	f.BoolVar(&o.list, "list", false, "list configured artifacts and whether they match this machine")
	f.StringVar(&o.logLevel, "log-level", "debug", "log level: debug, info, warn, error")
	f.StringVar(&o.logFormat, "log-format", "text", "log format: text or json")
	f.DurationVar(&o.timeout, "timeout", 0, "per-request download timeout, 0 for none")
	f.IntVar(&o.retries, "retries", 0, "retries for failed downloads, with exponential backoff")
}

func newRootCmd(out io.Writer, detector platform.Detector) *cobra.Command {
	o := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "artifetch",
		Short:         "Fetch, verify and extract prebuilt artifacts",
		Long:          globalUsage,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(o.install) == 0 && !o.list {
				return cmd.Help()
			}
			return o.run(cmd.Context(), out, detector)
		},
	}
	cmd.SetOut(out)
	cmd.SetVersionTemplate("artifetch {{.Version}}\n")
	o.addFlags(cmd.Flags())

	return cmd
}

func (o *rootOptions) run(ctx context.Context, out io.Writer, detector platform.Detector) error {
	if o.retries < 0 {
		return fmt.Errorf("--retries must not be negative")
	}

	log, err := logging.NewLogrus(logging.Options{Level: o.logLevel, Format: o.logFormat, Output: out})
	if err != nil {
		return err
	}

	baseDir, err := o.resolveBaseDir()
	if err != nil {
		return err
	}

	info, err := detector.Detect(ctx)
	if err != nil {
		return fmt.Errorf("detect platform: %w", err)
	}
	log.Debug("detected platform", "os", info.OS, "arch", info.ArchRaw, "distro", info.Platform, "family", info.Family)

	configPath := o.config
	if configPath == "" {
		configPath = config.DefaultPath(baseDir)
	}

	loader := config.NewLoader(platform.StaticDetector{Info: info}, log)
	entries, err := loader.Load(ctx, configPath)
	if err != nil {
		return err
	}

	if o.list {
		if err := printEntries(out, entries, info); err != nil {
			return err
		}
	}
	if len(o.install) == 0 {
		return nil
	}

	selected, err := artifact.Select(entries, info, artifact.ParseNames(o.install))
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		log.Info("nothing to install for this platform", "platform", info.String())
		return nil
	}

	fetcher := artifact.NewFetcher(
		artifact.WithTimeout(o.timeout),
		artifact.WithRetries(o.retries),
		artifact.WithLogger(log),
	)
	inst, err := artifact.NewInstaller(artifact.Config{
		BaseDir: baseDir,
		Fetcher: fetcher,
		Logger:  log,
	})
	if err != nil {
		return err
	}

	_, err = inst.InstallAll(ctx, selected)
	return err
}

// resolveBaseDir returns --base-dir, or the directory holding the running
// executable with symlinks resolved.
func (o *rootOptions) resolveBaseDir() (string, error) {
	if o.baseDir != "" {
		return filepath.Abs(o.baseDir)
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
