// Command gg is the object storage browser console: an HTTP server plus a
// small CLI for the same operations against MinIO or Amazon S3.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/browser"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/config"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/logger"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/server"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/session"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/storage"
)

var (
	cfgPath string
	cfg     *config.Config
	log     *logger.Logger

	listenFlag string
	queryFlag  string
	tagFlags   []string
	dirFlag    string
	yesFlag    bool
	ttlFlag    time.Duration

	rootCmd = &cobra.Command{
		Use:           "gg",
		Short:         "gg - object storage browser console",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return err
			}
			log = logger.New(&logger.Config{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				Output: os.Stderr,
			})
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the browser HTTP server",
		RunE:  runServe,
	}
	bucketsCmd = &cobra.Command{
		Use:   "buckets",
		Short: "List buckets",
		RunE:  runBuckets,
	}
	mbCmd = &cobra.Command{
		Use:   "mb NAME",
		Short: "Create a bucket (invalid names are normalized)",
		Args:  cobra.ExactArgs(1),
		RunE:  runMakeBucket,
	}
	lsCmd = &cobra.Command{
		Use:   "ls BUCKET",
		Short: "List the files in a bucket",
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}
	uploadCmd = &cobra.Command{
		Use:   "upload BUCKET FILE...",
		Short: "Upload files to a bucket",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runUpload,
	}
	getCmd = &cobra.Command{
		Use:   "get BUCKET FILE...",
		Short: "Download files from a bucket",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runGet,
	}
	rmCmd = &cobra.Command{
		Use:   "rm BUCKET FILE...",
		Short: "Delete files from a bucket",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runRemove,
	}
	presignCmd = &cobra.Command{
		Use:   "presign BUCKET FILE",
		Short: "Print a time-limited download URL",
		Args:  cobra.ExactArgs(2),
		RunE:  runPresign,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to config YAML")
	serveCmd.Flags().StringVar(&listenFlag, "listen", "", "Listen address (overrides config)")
	lsCmd.Flags().StringVarP(&queryFlag, "query", "q", "", "Filter files by name, tag or metadata")
	uploadCmd.Flags().StringArrayVar(&tagFlags, "tag", nil, "Tag applied to every file (key=value, repeatable)")
	getCmd.Flags().StringVarP(&dirFlag, "dir", "d", "", "Target directory (overrides config)")
	rmCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Confirm the deletion")
	presignCmd.Flags().DurationVar(&ttlFlag, "ttl", 15*time.Minute, "How long the URL stays valid")

	rootCmd.AddCommand(serveCmd, bucketsCmd, mbCmd, lsCmd, uploadCmd, getCmd, rmCmd, presignCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := listenFlag
	if addr == "" {
		addr = cfg.Server.Listen
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New(cfg, log, nil).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.With().Str("addr", addr).Logger().Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	}

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// connect signs in with the configured credentials and dials the backend.
func connect(ctx context.Context) (*browser.Controller, storage.Store, error) {
	sess, err := session.New(cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey)
	if err != nil {
		return nil, nil, err
	}
	sess.Region = cfg.Storage.Region
	sess.UseSSL = cfg.Storage.UseSSL

	provider := storage.Provider(cfg.Storage.Provider)
	store, err := server.OpenStore(ctx, sess.StorageConfig(provider, cfg.Storage.DefaultBucket))
	if err != nil {
		return nil, nil, err
	}

	ctl := browser.New(sess, store, browser.Options{
		Workers:         cfg.Preview.Workers,
		PreviewMaxBytes: cfg.Preview.MaxBytes,
		Logger:          log,
	})
	return ctl, store, nil
}

func runBuckets(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ctl, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	buckets, err := ctl.Buckets(ctx)
	if err != nil {
		return err
	}

	for _, b := range buckets {
		created := ""
		if !b.CreatedAt.IsZero() {
			created = b.CreatedAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%-40s %-18s %s\n", b.Name, created, b.AccessMode)
	}
	fmt.Printf("%d buckets\n", len(buckets))
	return nil
}

func runMakeBucket(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ctl, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := ctl.CreateBucket(ctx, args[0])
	if err != nil {
		return err
	}
	if res.Renamed {
		fmt.Printf("note: %q is not a valid bucket name (%s), created %q instead\n",
			res.RequestedName, res.Violation, res.Name)
	} else {
		fmt.Printf("created bucket %q\n", res.Name)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ctl, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := ctl.Load(ctx, args[0]); err != nil {
		return err
	}
	ctl.SetQuery(queryFlag)

	files := ctl.Visible()
	for _, f := range files {
		size := ""
		if f.Size >= 0 {
			size = humanize.Bytes(uint64(f.Size))
		}
		fmt.Printf("%-50s %10s  %-28s %s\n", f.Name, size, f.ContentType, formatTags(f.Tags))
	}
	if queryFlag != "" {
		fmt.Printf("%d of %d files match %q\n", len(files), len(ctl.Entries()), queryFlag)
	} else {
		fmt.Printf("%d files\n", len(files))
	}
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tags, err := parseTags(tagFlags)
	if err != nil {
		return err
	}

	ctl, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := ctl.Load(ctx, args[0]); err != nil {
		return err
	}
	for _, path := range args[1:] {
		pf, err := browser.PendingFromFile(path)
		if err != nil {
			return err
		}
		ctl.StagePending(pf)
	}

	if err := ctl.Upload(ctx, tags); err != nil {
		return fmt.Errorf("upload stopped at %d%%: %w", ctl.Progress(), err)
	}
	fmt.Printf("uploaded %d files to %q\n", len(args)-1, args[0])
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ctl, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := ctl.Load(ctx, args[0]); err != nil {
		return err
	}

	dir := dirFlag
	if dir == "" {
		dir = cfg.Download.Dir
	}
	names := args[1:]
	if err := ctl.Download(ctx, names, browser.DirSaver{Dir: dir}); err != nil {
		return err
	}
	fmt.Printf("saved %d files to %s\n", len(names), dir)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ctl, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := ctl.Load(ctx, args[0]); err != nil {
		return err
	}

	count := ctl.StageDelete(args[1:]...)
	if count == 0 {
		fmt.Println("nothing to delete: no matching files in the bucket")
		return nil
	}
	if !yesFlag {
		fmt.Printf("would delete %d files from %q:\n", count, args[0])
		for _, name := range ctl.StagedDeletion() {
			fmt.Println("  " + name)
		}
		fmt.Println("re-run with --yes to confirm")
		return nil
	}

	if err := ctl.ConfirmDelete(ctx); err != nil {
		return err
	}
	fmt.Printf("deleted %d files from %q\n", count, args[0])
	return nil
}

func runPresign(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	url, err := store.PresignGetURL(ctx, args[0], args[1], ttlFlag)
	if err != nil {
		return err
	}
	fmt.Println(url)
	return nil
}

// formatTags renders tags as "key=value key=value".
func formatTags(tags []storage.Tag) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = t.Key + "=" + t.Value
	}
	return strings.Join(parts, " ")
}

// parseTags parses repeated key=value flags.
func parseTags(vals []string) ([]storage.Tag, error) {
	if len(vals) == 0 {
		return nil, nil
	}
	tags := make([]storage.Tag, len(vals))
	for i, v := range vals {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid tag %q (want key=value)", v)
		}
		tags[i] = storage.Tag{Key: key, Value: value}
	}
	return tags, nil
}
