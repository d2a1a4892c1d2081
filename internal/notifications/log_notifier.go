package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrProviderDown = errors.New("notification provider down")

// LogNotifierConfig lets local runs simulate a slow or failing provider.
type LogNotifierConfig struct {
	Delay time.Duration
	Fail  bool
}

// LogNotifier writes notifications to the log instead of a delivery provider.
type LogNotifier struct {
	cfg    LogNotifierConfig
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger, cfg LogNotifierConfig) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{cfg: cfg, logger: logger}
}

func (n *LogNotifier) ProposalSubmitted(ctx context.Context, in ProposalSubmittedInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	n.logger.InfoContext(ctx, "notification.proposal_submitted",
		"recipient_id", in.RecipientID,
		"proposal_id", in.ProposalID,
		"job_id", in.JobID,
		"freelancer_id", in.FreelancerID,
	)
	return nil
}

func (n *LogNotifier) ProposalStatusChanged(ctx context.Context, in ProposalStatusChangedInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	n.logger.InfoContext(ctx, "notification.proposal_status_changed",
		"recipient_id", in.RecipientID,
		"proposal_id", in.ProposalID,
		"job_id", in.JobID,
		"actor_id", in.ActorID,
		"status", in.Status,
	)
	return nil
}

func (n *LogNotifier) simulate(ctx context.Context) error {
	if n.cfg.Delay > 0 {
		t := time.NewTimer(n.cfg.Delay)
		defer t.Stop()

		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if n.cfg.Fail {
		return ErrProviderDown
	}
	return nil
}
