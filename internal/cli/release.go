package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/rtgl/internal/config"
	"github.com/roach88/rtgl/internal/publish"
	"github.com/roach88/rtgl/internal/release"
)

// newObjectStore opens the publish target. Tests replace it.
var newObjectStore = func(cfg publish.S3Config) (publish.ObjectStore, error) {
	return publish.NewS3Store(cfg)
}

// ReleaseOptions holds flags shared by the release subcommands.
type ReleaseOptions struct {
	*RootOptions
	Project string // project root whose rtgl.yaml locates the release dir
	Prefix  string // object key prefix for publish
}

// NewReleaseCommand creates the release command group.
func NewReleaseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReleaseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "release",
		Short: "Manifest, sign, attest and publish a build output directory",
		Long: `Release subcommands operate on a directory of build outputs. The
directory defaults to release.dir from rtgl.yaml (itself defaulting to
outDir).

The signing key is read from RTGL_RELEASE_SIGNING_KEY and its id from
RTGL_RELEASE_SIGNING_KEY_ID. Without them a local development key is used.`,
	}
	cmd.PersistentFlags().StringVar(&opts.Project, "project", ".", "project root holding rtgl.yaml")

	cmd.AddCommand(newReleaseSubcommand(opts, "manifest", "Write release-manifest.json", runReleaseManifest))
	cmd.AddCommand(newReleaseSubcommand(opts, "sign", "Write a fresh manifest and its signature", runReleaseSign))
	cmd.AddCommand(newReleaseSubcommand(opts, "verify", "Verify the manifest signature and file hashes", runReleaseVerify))
	cmd.AddCommand(newReleaseSubcommand(opts, "provenance", "Write release-provenance.json for the manifest", runReleaseProvenance))
	cmd.AddCommand(newReleaseSubcommand(opts, "verify-provenance", "Check provenance subjects against the manifest", runReleaseVerifyProvenance))

	publishCmd := newReleaseSubcommand(opts, "publish", "Verify the release and upload it to object storage", runReleasePublish)
	publishCmd.Flags().StringVar(&opts.Prefix, "prefix", "", "object key prefix (default from rtgl.yaml)")
	cmd.AddCommand(publishCmd)

	return cmd
}

type releaseRunFunc func(cmd *cobra.Command, opts *ReleaseOptions, cfg *config.Config, dir string) error

func newReleaseSubcommand(opts *ReleaseOptions, name, short string, run releaseRunFunc) *cobra.Command {
	return &cobra.Command{
		Use:           name + " [release-dir]",
		Short:         short,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProject([]string{opts.Project})
			if err != nil {
				return fail(opts.formatter(cmd), err)
			}
			dir := cfg.Resolve(cfg.Release.Dir)
			if len(args) > 0 {
				if dir, err = filepath.Abs(args[0]); err != nil {
					return fail(opts.formatter(cmd), err)
				}
			}
			return run(cmd, opts, cfg, dir)
		},
	}
}

// signingKey reads the release key from the environment, warning when the
// local development key is in use.
func signingKey(formatter *OutputFormatter) release.Key {
	key := release.KeyFromEnv(nil)
	if key.IsLocalDev() {
		fmt.Fprintf(formatter.GetErrWriter(),
			"warning: %s is not set; using the local development signing key\n", release.EnvSigningKey)
	}
	return key
}

func runReleaseManifest(cmd *cobra.Command, opts *ReleaseOptions, _ *config.Config, dir string) error {
	formatter := opts.formatter(cmd)
	m, err := release.CreateManifest(dir, release.ManifestOptions{})
	if err != nil {
		return fail(formatter, err)
	}
	if err := release.WriteManifest(dir, m); err != nil {
		return fail(formatter, err)
	}
	if formatter.IsJSON() {
		return formatter.Success(m)
	}
	fmt.Fprintf(formatter.Writer, "Wrote %s listing %s\n",
		filepath.Join(dir, release.ManifestFileName), pluralize(len(m.Artifacts), "file"))
	return nil
}

func runReleaseSign(cmd *cobra.Command, opts *ReleaseOptions, _ *config.Config, dir string) error {
	formatter := opts.formatter(cmd)
	m, env, err := release.SignRelease(dir, signingKey(formatter), release.ManifestOptions{})
	if err != nil {
		return fail(formatter, err)
	}
	if formatter.IsJSON() {
		return formatter.Success(map[string]any{"manifest": m, "signature": env})
	}
	fmt.Fprintf(formatter.Writer, "Signed %s with key %s\n", pluralize(len(m.Artifacts), "file"), env.KeyID)
	return nil
}

func runReleaseVerify(cmd *cobra.Command, opts *ReleaseOptions, _ *config.Config, dir string) error {
	formatter := opts.formatter(cmd)
	res, err := release.VerifySignedManifest(dir, signingKey(formatter))
	if err != nil {
		return fail(formatter, err)
	}

	if formatter.IsJSON() {
		if res.OK {
			return formatter.Success(res)
		}
		_ = formatter.Failure(ErrCodeVerification, "release verification failed", res)
	} else {
		if !res.SignatureMatch {
			fmt.Fprintf(formatter.Writer, "signature mismatch (key %s)\n", res.KeyID)
		}
		for _, m := range res.HashMismatches {
			switch {
			case m.Actual == "":
				fmt.Fprintf(formatter.Writer, "missing: %s\n", m.Path)
			case m.Expected == "":
				fmt.Fprintf(formatter.Writer, "unlisted: %s\n", m.Path)
			default:
				fmt.Fprintf(formatter.Writer, "modified: %s\n", m.Path)
			}
		}
		if res.OK {
			fmt.Fprintf(formatter.Writer, "Release verified (key %s)\n", res.KeyID)
			return nil
		}
	}
	return NewExitError(ExitFailure, "release verification failed")
}

func runReleaseProvenance(cmd *cobra.Command, opts *ReleaseOptions, _ *config.Config, dir string) error {
	formatter := opts.formatter(cmd)
	m, err := release.ReadManifest(dir)
	if err != nil {
		return fail(formatter, err)
	}
	p, err := release.CreateProvenance(m, release.ProvenanceOptions{})
	if err != nil {
		return fail(formatter, err)
	}
	if err := release.WriteProvenance(dir, p); err != nil {
		return fail(formatter, err)
	}
	if formatter.IsJSON() {
		return formatter.Success(p)
	}
	fmt.Fprintf(formatter.Writer, "Wrote %s attesting %s (invocation %s)\n",
		filepath.Join(dir, release.ProvenanceFileName), pluralize(len(p.Subject), "subject"), p.Metadata.InvocationID)
	return nil
}

func runReleaseVerifyProvenance(cmd *cobra.Command, opts *ReleaseOptions, _ *config.Config, dir string) error {
	formatter := opts.formatter(cmd)
	res, err := release.VerifyProvenance(dir)
	if err != nil {
		return fail(formatter, err)
	}

	if formatter.IsJSON() {
		if res.OK {
			return formatter.Success(res)
		}
		_ = formatter.Failure(ErrCodeVerification, "provenance verification failed", res)
	} else {
		for _, m := range res.Mismatches {
			fmt.Fprintf(formatter.Writer, "%s: %s\n", m.Reason, m.Name)
		}
		if !res.ManifestDigestMatch {
			fmt.Fprintln(formatter.Writer, "note: manifest changed since provenance was written")
		}
		if res.OK {
			fmt.Fprintf(formatter.Writer, "Provenance verified (sha256 %s)\n", res.ProvenanceSHA256)
			return nil
		}
	}
	return NewExitError(ExitFailure, "provenance verification failed")
}

func runReleasePublish(cmd *cobra.Command, opts *ReleaseOptions, cfg *config.Config, dir string) error {
	formatter := opts.formatter(cmd)
	store, err := newObjectStore(cfg.S3Config())
	if err != nil {
		return fail(formatter, err)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = cfg.Publish.Prefix
	}

	pub := publish.New(store, publish.Options{
		Prefix: prefix,
		Key:    signingKey(formatter),
		Logger: opts.logger(cmd.ErrOrStderr()),
	})
	res, err := pub.Publish(cmd.Context(), dir)
	if err != nil {
		return fail(formatter, err)
	}
	if formatter.IsJSON() {
		return formatter.Success(res)
	}
	for _, k := range res.Keys {
		fmt.Fprintf(formatter.Writer, "uploaded %s\n", k)
	}
	fmt.Fprintf(formatter.Writer, "Published %s to %s\n", pluralize(len(res.Keys), "object"), cfg.Publish.Bucket)
	return nil
}
