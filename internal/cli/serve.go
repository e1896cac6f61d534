package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/podscrub/podscrub/internal/server"
)

var (
	serveAddr      string
	serveDemo      bool
	serveStepDelay time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the in-memory reference backend",
	Long: `Run an in-memory implementation of the backend's status API, for
development and demos. With --demo the store is seeded with a feed, a token
pair (demo-token/demo-secret) and a few episodes whose jobs advance through
the pipeline on their own.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "localhost:5001", "listen address")
	serveCmd.Flags().BoolVar(&serveDemo, "demo", false, "seed demo data with self-advancing jobs")
	serveCmd.Flags().DurationVar(&serveStepDelay, "step-delay", 3*time.Second, "per-step duration for demo jobs")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	store := server.NewStore(logger)
	if serveDemo {
		seedDemo(store)
	}

	srv := server.New(store, logger)
	fmt.Printf("Reference backend on http://%s\n", serveAddr)
	if serveDemo {
		fmt.Println("Demo token pair: demo-token / demo-secret")
	}
	return srv.Run(cmd.Context(), serveAddr)
}

func seedDemo(store *server.Store) {
	store.SetStepDelay(serveStepDelay)
	store.AddFeedToken("demo-token", "demo-secret")

	episodes := []server.Post{
		{GUID: "ep-101", Title: "The Economics of Everything #101", FeedTitle: "Economics of Everything", Whitelisted: true},
		{GUID: "ep-102", Title: "The Economics of Everything #102", FeedTitle: "Economics of Everything", Whitelisted: true},
		{GUID: "ep-201", Title: "Night Histories: The Lost Expedition", FeedTitle: "Night Histories", Whitelisted: true},
		{GUID: "ep-202", Title: "Night Histories: Bonus Mailbag", FeedTitle: "Night Histories", Whitelisted: false},
	}
	for _, ep := range episodes {
		store.AddPost(ep)
	}

	store.StartJob("ep-101", "auto_feed_refresh")
	store.StartJob("ep-201", "auto_feed_refresh")
}
