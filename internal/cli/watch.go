package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/podscrub/podscrub/internal/api"
	"github.com/podscrub/podscrub/internal/models"
	"github.com/podscrub/podscrub/internal/poll"
)

var (
	watchFeedToken  string
	watchFeedSecret string
	watchInterval   time.Duration
	watchSession    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <guid>",
	Short: "Track an episode's ad-removal pipeline",
	Long: `Track a single episode's processing pipeline until it finishes.

By default the status is fetched through the public trigger link, which
requires the feed access token pair (--feed-token/--feed-secret or the
PODSCRUB_FEED_TOKEN/PODSCRUB_FEED_SECRET env vars). With --session the
authenticated console endpoint is used instead and no token is needed.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchFeedToken, "feed-token", "", "feed access token id")
	watchCmd.Flags().StringVar(&watchFeedSecret, "feed-secret", "", "feed access token secret")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "polling interval (default 2s)")
	watchCmd.Flags().BoolVar(&watchSession, "session", false, "use the authenticated episode endpoint")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	guid := args[0]
	ctrl := startEpisodeSession(cmd.Context(), guid)
	defer ctrl.Stop()

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return RunWatchUI(ctrl, fmt.Sprintf("Watching episode %s", guid))
	}
	return followPlain(ctrl)
}

// startEpisodeSession wires a polling session for one episode, through the
// trigger link or the authenticated endpoint.
func startEpisodeSession(ctx context.Context, guid string) *poll.Controller {
	token := watchFeedToken
	if token == "" {
		token = cfg.FeedToken
	}
	secret := watchFeedSecret
	if secret == "" {
		secret = cfg.FeedSecret
	}

	interval := watchInterval
	if interval <= 0 {
		interval = cfg.EpisodeInterval
	}

	var subject poll.Subject
	var fetch poll.FetchFunc
	if watchSession {
		subject = poll.Subject{Kind: poll.SubjectEpisode, GUID: guid}
		fetch = func(ctx context.Context) api.Outcome {
			return apiClient.EpisodeStatus(ctx, guid)
		}
	} else {
		subject = poll.Subject{Kind: poll.SubjectTriggerLink, GUID: guid, FeedToken: token, FeedSecret: secret}
		fetch = func(ctx context.Context) api.Outcome {
			return apiClient.TriggerStatus(ctx, guid, token, secret)
		}
	}

	return poll.Start(ctx, poll.SessionConfig{
		Subject:  subject,
		Interval: interval,
		Fetch:    fetch,
		Logger:   logger,
	})
}

// followPlain prints one line per status change; used when stdout is not a
// terminal.
func followPlain(ctrl *poll.Controller) error {
	for {
		select {
		case s := <-ctrl.Updates():
			printSnapshotLine(s)
			if s.Status.Terminal() {
				return terminalError(s.Status)
			}
		case <-ctrl.Done():
			s := ctrl.Snapshot()
			printSnapshotLine(s)
			return terminalError(s.Status)
		}
	}
}

func printSnapshotLine(s poll.Snapshot) {
	status := s.Status
	line := fmt.Sprintf("[%s] %.0f%%", status.State, status.Percentage)
	if status.StepName != "" {
		line += " " + status.StepName
	}
	if s.Transient {
		line += " (server unreachable, retrying)"
	}
	if status.Error != "" {
		line += " error=" + status.Error
	}
	fmt.Println(line)
}

func terminalError(status models.JobStatus) error {
	switch status.State {
	case models.StateFailed, models.StatePermanentError:
		if status.Error != "" {
			return fmt.Errorf("%s", status.Error)
		}
		return fmt.Errorf("processing failed")
	}
	return nil
}
