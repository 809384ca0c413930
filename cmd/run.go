package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/meeting-conflicts/input"
	"github.com/maastricht-university/meeting-conflicts/orchestrator"
	"github.com/maastricht-university/meeting-conflicts/store"
)

var runOpts struct {
	transcript string
	speakers   string
	audio      string
	truth      string
	threshold  float64
	clusters   int
	noStore    bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyze one recording",
	Long: "Analyze one recording, either from transcript and speaker segment files\n" +
		"(JSON or YAML) or from an audio file sent to the configured ASR and\n" +
		"diarization services.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cmd)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.transcript, "transcript", "", "transcript segments file")
	f.StringVar(&runOpts.speakers, "speakers", "", "speaker segments file")
	f.StringVar(&runOpts.audio, "audio", "", "audio file for the ASR and diarization services")
	f.StringVar(&runOpts.truth, "truth", "", "labelled conflict pairs to evaluate against")
	f.Float64Var(&runOpts.threshold, "threshold", -1, "conflict probability threshold (default from config)")
	f.IntVar(&runOpts.clusters, "clusters", 0, "number of topic clusters (default from config)")
	f.BoolVar(&runOpts.noStore, "no-store", false, "do not record the run in the history database")
	runCmd.MarkFlagsRequiredTogether("transcript", "speakers")
	runCmd.MarkFlagsMutuallyExclusive("audio", "transcript")
}

func run(ctx context.Context, cmd *cobra.Command) error {
	if runOpts.audio == "" && runOpts.transcript == "" {
		return errors.New("either --audio or --transcript/--speakers is required")
	}

	p := orchestrator.NewPipeline(conf)
	params := p.DefaultParams()
	if cmd.Flags().Changed("threshold") {
		if runOpts.threshold < 0 || runOpts.threshold > 1 {
			return fmt.Errorf("--threshold %v outside [0,1]", runOpts.threshold)
		}
		params.Threshold = runOpts.threshold
	}
	if runOpts.clusters > 0 {
		params.ClusterNum = runOpts.clusters
	}

	var (
		rep *orchestrator.Report
		err error
	)
	if runOpts.audio != "" {
		rep, err = p.RunAudio(ctx, runOpts.audio, params)
	} else {
		rep, err = analyzeFiles(ctx, p, params)
	}
	if err != nil {
		return err
	}

	if runOpts.truth != "" {
		truth, err := input.Conflicts(runOpts.truth)
		if err != nil {
			return err
		}
		rep.Evaluate(truth)
		log.WithFields(log.Fields{
			"precision": rep.Metrics.Precision,
			"recall":    rep.Metrics.Recall,
			"f1":        rep.Metrics.F1,
		}).Info("evaluation done")
	}

	dir, err := orchestrator.Persist(conf.Paths.Outputs, rep)
	if err != nil {
		return err
	}
	log.WithField("dir", dir).Info("results written")

	if !runOpts.noStore {
		runs, err := store.Open(conf.Paths.Database)
		if err != nil {
			return err
		}
		defer runs.Close()
		if prev, err := runs.LatestByFingerprint(ctx, rep.Fingerprint); err == nil {
			log.WithFields(log.Fields{"previous": prev.ID, "at": prev.CreatedAt}).Info("same input analyzed before")
		}
		if err := runs.SaveRun(ctx, orchestrator.RunRecord(rep, dir), rep.Utterances, rep.Conflicts); err != nil {
			return err
		}
	}

	printSummary(cmd, rep, dir)
	return nil
}

func analyzeFiles(ctx context.Context, p *orchestrator.Pipeline, params orchestrator.Params) (*orchestrator.Report, error) {
	tr, err := input.Transcript(runOpts.transcript)
	if err != nil {
		return nil, err
	}
	sp, err := input.Speakers(runOpts.speakers)
	if err != nil {
		return nil, err
	}
	return p.Analyze(ctx, tr, sp, params)
}

func printSummary(cmd *cobra.Command, rep *orchestrator.Report, dir string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s  status=%s\n", rep.RunID, rep.Status)
	fmt.Fprintf(out, "utterances=%d candidates=%d clusters=%d conflicts=%d\n",
		len(rep.Utterances), len(rep.Candidates), len(rep.Clusters), len(rep.Conflicts))
	for _, c := range rep.Conflicts {
		fmt.Fprintf(out, "  %.4f  %q <> %q\n", c.Probability, c.Text1, c.Text2)
	}
	for _, w := range rep.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	if rep.Metrics != nil {
		fmt.Fprintf(out, "precision=%.3f recall=%.3f f1=%.3f\n", rep.Metrics.Precision, rep.Metrics.Recall, rep.Metrics.F1)
	}
	fmt.Fprintf(out, "results in %s\n", dir)
}
