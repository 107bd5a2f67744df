package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	triage "github.com/menta2k/annotation-triage"
	"github.com/menta2k/annotation-triage/internal/config"
	"github.com/menta2k/annotation-triage/internal/keys"
	"github.com/menta2k/annotation-triage/internal/logging"
	"github.com/menta2k/annotation-triage/pkg/session"
)

const lockFileName = ".annotation-triage.lock"

type reviewFlags struct {
	source  string
	dests   []string
	save    string
	preview string
}

// apply overrides config values with flags given on the command line
func (f reviewFlags) apply(cfg *config.Config) error {
	if f.source != "" {
		cfg.SourceDir = f.source
	}
	for _, d := range f.dests {
		name, dir, err := config.ParseDestFlag(d)
		if err != nil {
			return err
		}
		if err := cfg.SetCategoryDir(name, dir); err != nil {
			return err
		}
	}
	if f.save != "" {
		cfg.Save.Dir = f.save
	}
	if f.preview != "" {
		cfg.Preview.Path = f.preview
	}
	cfg.Normalize()
	return nil
}

func newReviewCommand(ctx *commandContext) *cobra.Command {
	var flags reviewFlags

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review the source folder one image at a time",
		Long: `Walks through the images of the source folder. Each image is drawn with its
annotation overlay into the preview file, next to the untouched original.

Keys: left/right arrows navigate, one key per category rejects the image,
the save key accepts it, the undo key reverses the last sort, the quit key exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if info, err := os.Stat(cfg.SourceDir); err != nil || !info.IsDir() {
				return fmt.Errorf("source folder %s is not a directory", cfg.SourceDir)
			}

			lock := flock.New(filepath.Join(cfg.SourceDir, lockFileName))
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return fmt.Errorf("another review is already running on %s", cfg.SourceDir)
			}
			defer func() { _ = lock.Unlock() }()

			tty, err := openTerminal(os.Stdin, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = tty.restore() }()

			var logOut io.Writer = cmd.ErrOrStderr()
			if tty.raw {
				logOut = crlfWriter{w: logOut}
			}
			logger, closeLog, err := ctx.newLogger(cfg, logOut)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()
			logger, _ = logging.WithSession(logger)

			tr, err := triage.New(cfg, logger)
			if err != nil {
				return err
			}
			sess, err := tr.NewSession()
			if errors.Is(err, session.ErrNoImages) {
				fmt.Fprintf(tty.out, "No images to review in %s\n", cfg.SourceDir)
				return nil
			}
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runReview(runCtx, tr, sess, tty.in, tty.out, logger)
		},
	}

	cmd.Flags().StringVar(&flags.source, "source", "", "Folder with images to review")
	cmd.Flags().StringArrayVar(&flags.dests, "dest", nil, "Category folder as name=dir (repeatable)")
	cmd.Flags().StringVar(&flags.save, "save", "", "Folder for accepted images")
	cmd.Flags().StringVar(&flags.preview, "preview", "", "Preview image path")
	return cmd
}

// keymap binds keystrokes to session commands
type keymap map[keys.Key]session.Command

func newKeymap(cfg *config.Config) keymap {
	km := keymap{
		{Kind: keys.Left}:      session.Prev(),
		{Kind: keys.Right}:     session.Next(),
		{Kind: keys.Interrupt}: session.Quit(),
	}
	bind := func(k string, cmd session.Command) {
		if r, _ := utf8.DecodeRuneInString(k); r != utf8.RuneError {
			km[keys.Key{Kind: keys.Rune, Ch: r}] = cmd
		}
	}
	for _, c := range cfg.Categories {
		bind(c.Key, session.SortTo(c.Name))
	}
	if cfg.Save.Dir != "" {
		bind(cfg.Save.Key, session.Save())
	}
	bind(cfg.Keys.Undo, session.Undo())
	bind(cfg.Keys.Quit, session.Quit())
	return km
}

// help lists the rune bindings in a stable order
func (km keymap) help() string {
	parts := make([]string, 0, len(km)+1)
	for k, cmd := range km {
		if k.Kind != keys.Rune {
			continue
		}
		parts = append(parts, fmt.Sprintf("%c=%s", k.Ch, strings.TrimPrefix(cmd.String(), "sort:")))
	}
	sort.Strings(parts)
	return "keys: <-/-> navigate  " + strings.Join(parts, "  ")
}

// readKeys forwards keystrokes until the input ends or ctx is done. A read
// that is already blocked returns only when the input yields a byte or closes.
func readKeys(ctx context.Context, in io.Reader) <-chan keys.Key {
	ch := make(chan keys.Key)
	go func() {
		defer close(ch)
		r := keys.NewReader(in)
		for {
			k, err := r.Next()
			if err != nil {
				return
			}
			select {
			case ch <- k:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// runReview loads, previews and dispatches until the reviewer quits, the
// input ends, ctx is cancelled or no images are left.
func runReview(ctx context.Context, tr *triage.Triage, sess *session.Session, in io.Reader, out io.Writer, logger zerolog.Logger) error {
	km := newKeymap(tr.Config())
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	input := readKeys(readCtx, in)

	fmt.Fprintln(out, km.help())
	fmt.Fprintf(out, "preview: %s\n", tr.PreviewPath())

loop:
	for !sess.Done() {
		view, err := sess.Load()
		if errors.Is(err, session.ErrNoImages) {
			fmt.Fprintln(out, "No images left to review.")
			break
		}
		if err != nil {
			return err
		}

		for _, n := range view.Notices {
			fmt.Fprintf(out, "! %v\n", n)
		}
		if err := tr.WritePreview(view); err != nil {
			fmt.Fprintf(out, "! %v\n", err)
		}
		fmt.Fprintln(out, statusLine(view))

		var cmd session.Command
		for {
			select {
			case <-ctx.Done():
				break loop
			case k, ok := <-input:
				if !ok {
					break loop
				}
				bound, found := km[k]
				if !found {
					continue
				}
				cmd = bound
			}
			break
		}

		logger.Debug().Str("command", cmd.String()).Str("file", view.Name).Msg("dispatch")
		if err := sess.Dispatch(cmd); err != nil {
			fmt.Fprintf(out, "! %v\n", err)
		}
	}

	printSummary(out, sess.Stats())
	return nil
}

func statusLine(v *session.View) string {
	line := fmt.Sprintf("[%d/%d] %s  %dx%d  annotations: %d",
		v.Position, v.Total, v.Name,
		v.Original.Bounds().Dx(), v.Original.Bounds().Dy(), len(v.Records))
	if len(v.Warnings) > 0 {
		line += fmt.Sprintf("  skipped lines: %d", len(v.Warnings))
	}
	return line
}

func printSummary(out io.Writer, st session.Stats) {
	names := make([]string, 0, len(st.Sorted))
	for name := range st.Sorted {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, st.Sorted[name]))
	}
	if len(parts) == 0 {
		parts = append(parts, "nothing sorted")
	}
	fmt.Fprintf(out, "session: %s, %d remaining", strings.Join(parts, " "), st.Remaining)
	if st.Skipped > 0 {
		fmt.Fprintf(out, ", %d unreadable", st.Skipped)
	}
	fmt.Fprintln(out)
}
