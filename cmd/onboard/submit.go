package main

import (
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/onboard/internal/filestore"
	"github.com/hyperengineering/onboard/internal/onboarding"
	"github.com/hyperengineering/onboard/internal/types"
	"github.com/hyperengineering/onboard/internal/worker"
)

var (
	submitFormPath  string
	submitDraftOnly bool
	submitReopenID  string
	submitPasses    int
	submitWatch     bool
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Send an onboarding form to the backend",
	Long: "Load an onboarding form from YAML, save it as a draft and submit it. " +
		"Rows that fail to sync are retried for a few passes; they never block submission.",
	Args: cobra.NoArgs,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitFormPath, "file", "f", "", "Form YAML file (required)")
	submitCmd.Flags().BoolVar(&submitDraftOnly, "draft-only", false,
		"Save as a draft without submitting")
	submitCmd.Flags().StringVar(&submitReopenID, "onboarding", "",
		"Add the form's rows to an existing onboarding instead of creating one")
	submitCmd.Flags().IntVar(&submitPasses, "passes", 3,
		"Sync passes to run for rows that fail to sync")
	submitCmd.Flags().BoolVar(&submitWatch, "watch", false,
		"Keep retrying unsynced rows until interrupted instead of stopping after --passes")
	submitCmd.MarkFlagRequired("file")
}

type submitResult struct {
	OnboardingID string                 `json:"onboarding_id"`
	Status       types.OnboardingStatus `json:"status"`
	Summary      onboarding.Summary     `json:"summary"`
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, c, err := loadClient(cmd)
	if err != nil {
		return err
	}

	form, err := onboarding.LoadForm(submitFormPath)
	if err != nil {
		return err
	}

	files, err := filestore.New(cfg.Files)
	if err != nil {
		return err
	}

	s := onboarding.NewSession(c, onboarding.RemotesFor(c), form.Header(),
		onboarding.WithLogger(slog.Default()),
		onboarding.WithFileStore(files),
	)

	// Rows are validated before anything is sent.
	if err := s.Fill(ctx, form); err != nil {
		return fmt.Errorf("form has invalid rows:\n%w", err)
	}

	if submitReopenID != "" {
		if err := s.Open(ctx, submitReopenID); err != nil {
			return err
		}
	}

	// The draft is saved first so every category drains against it before
	// the status changes.
	id, err := s.SaveDraft(ctx)
	if err != nil {
		return err
	}
	status := types.StatusDraft
	if !submitDraftOnly {
		if _, err := s.Submit(ctx); err != nil {
			return err
		}
		status = types.StatusSubmitted
	}

	w := worker.NewSyncWorker(s, time.Duration(cfg.Client.SyncInterval), slog.Default())
	var settleErr error
	switch {
	case submitWatch:
		watchCtx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
		w.Run(watchCtx)
		stop()
		if s.NeedsSync() {
			settleErr = worker.ErrUnsettled
		}
	case submitPasses > 0:
		settleErr = w.RunUntilSettled(ctx, submitPasses)
	}

	result := submitResult{OnboardingID: id, Status: status, Summary: s.Summary()}
	if jsonOutput {
		if err := printJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else if err := printSubmitResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	if settleErr != nil {
		return fmt.Errorf("%d rows not synced: %w", result.Summary.Pending, settleErr)
	}
	return nil
}

func printSubmitResult(out io.Writer, r submitResult) error {
	verb := "Submitted"
	if r.Status == types.StatusDraft {
		verb = "Saved draft"
	}
	fmt.Fprintf(out, "%s onboarding %s\n", verb, r.OnboardingID)

	w := newTabWriter(out)
	fmt.Fprintln(w, "CATEGORY\tSYNCED\tPENDING")
	for _, cs := range r.Summary.Categories {
		fmt.Fprintf(w, "%s\t%d\t%d\n", cs.Category, cs.Confirmed, cs.Pending)
	}
	return w.Flush()
}
