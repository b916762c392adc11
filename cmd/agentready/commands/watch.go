package commands

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/bartekus/agentready/internal/pipeline"
)

// settle absorbs the burst of events a single editor save produces.
const settle = 250 * time.Millisecond

func newWatchCmd(o *rootOptions) *cobra.Command {
	var (
		tf      targetFlags
		publish bool
	)

	cmd := &cobra.Command{
		Use:   "watch <spec>",
		Short: "Re-classify a document every time it changes",
		Long: `Classifies the document once, then again after every save until
interrupted. With --publish each classification runs the full pipeline.
Failures are reported and watching continues.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			var p *pipeline.Pipeline
			if publish {
				if p, err = o.newPipeline(); err != nil {
					return err
				}
			}

			once := func(ctx context.Context) {
				var res result
				if p == nil {
					ev, err := pipeline.Evaluate(ctx, o.linter(), spec)
					if err != nil {
						res = failedResult(args[0], err)
					} else {
						res = evaluationResult(ev)
					}
				} else {
					target, err := tf.target(spec)
					if err != nil {
						res = failedResult(args[0], err)
					} else {
						out, _ := p.Run(ctx, target)
						res = outcomeResult(out)
					}
				}
				res.Spec = args[0]
				writeResult(cmd.OutOrStdout(), res, p == nil)
			}

			once(cmd.Context())
			return watchFile(cmd.Context(), spec, once)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&publish, "publish", false, "run the full pipeline on every change")
	f.StringVar(&tf.apiID, "api", "", "registry API id (default: slug of info.title)")
	f.StringVar(&tf.versionID, "version", "", "registry version id (default: slug of info.version)")
	return cmd
}

// watchFile calls onChange after path is written, created or renamed into
// place, until ctx is cancelled. The parent directory is watched because
// editors often save by replacing the file.
func watchFile(ctx context.Context, path string, onChange func(context.Context)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	slog.Info("watch: watching for changes", "path", path)

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, path) {
				continue
			}
			timer.Reset(settle)

		case <-timer.C:
			slog.Debug("watch: change detected", "path", path)
			onChange(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watch: watcher error", "err", err)
		}
	}
}

func relevant(event fsnotify.Event, path string) bool {
	if filepath.Clean(event.Name) != path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
