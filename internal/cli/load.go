package cli

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/okian/xsteal/internal/domain/estimator"
	"github.com/okian/xsteal/internal/domain/types"
)

// inFlightBackoff is the pause before re-posting an attempt ID the server is
// still evaluating.
const inFlightBackoff = 5 * time.Millisecond

// loadConfig holds the flags of the load command.
type loadConfig struct {
	baseURL    string
	attempts   int
	workers    int
	duplicates float64
	variant    string
	timeout    time.Duration
	seed       uint64
}

// LoadReport summarizes a load run against a server.
type LoadReport struct {
	SessionID  string        `json:"session_id"`
	Sent       int           `json:"sent"`
	Created    int           `json:"created"`
	Duplicate  int           `json:"duplicate"`
	Failed     int           `json:"failed"`
	InFlight   int           `json:"in_flight"`
	Window     int           `json:"window"`
	Capacity   int           `json:"capacity"`
	Duration   time.Duration `json:"duration_ns"`
	Consistent bool          `json:"consistent"`
	Problems   []string      `json:"problems,omitempty"`
}

func newLoadCmd(g *globals) *cobra.Command {
	cfg := &loadConfig{}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Post concurrent attempts to a running server and verify its history.",
		Long: `Creates a session on the server, posts attempts from a pool of workers with a
share of retried attempt IDs, then checks that no attempt was stored twice and
that the session window is filled up to its capacity with attempts that were sent.
Retries that reach the server while the first post is still evaluated get 409
and are posted again.`,
		Example: `  xsteal load --url http://localhost:9080 -n 500 --workers 16 --duplicates 0.2`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.workers <= 0 || cfg.attempts < 0 || cfg.duplicates < 0 || cfg.duplicates > 1 {
				return fmt.Errorf("%w: workers must be positive and duplicates within [0,1]", ErrInvalidFlag)
			}
			if !cmd.Flags().Changed("seed") {
				cfg.seed = uint64(time.Now().UnixNano())
			}

			report, err := runLoad(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if g.isJSON() {
				return writeJSON(out(cmd), report)
			}
			return renderLoad(cmd, report)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.baseURL, "url", "http://localhost:9080", "base URL of the xsteal server")
	fs.IntVarP(&cfg.attempts, "attempts", "n", 100, "number of attempts to post, retries included")
	fs.IntVar(&cfg.workers, "workers", 4, "concurrent HTTP workers")
	fs.Float64Var(&cfg.duplicates, "duplicates", 0.1, "share of posts that retry an earlier attempt ID")
	fs.StringVar(&cfg.variant, "variant", "", "session variant (default: server default)")
	fs.DurationVar(&cfg.timeout, "timeout", 10*time.Second, "per-request timeout")
	fs.Uint64Var(&cfg.seed, "seed", 0, "random seed (default: time based)")
	return cmd
}

// plannedAttempts builds the posts in send order. Retries reuse an earlier ID and body.
func plannedAttempts(rng *rand.Rand, names []estimator.MetricName, n int, dupShare float64) ([]attemptRequest, int) {
	posts := make([]attemptRequest, 0, n)
	unique := 0
	for i := 0; i < n; i++ {
		if unique > 0 && rng.Float64() < dupShare {
			posts = append(posts, posts[rng.IntN(len(posts))])
			continue
		}
		m := drawMetrics(rng, names)
		wire := make(map[string]float64, len(m))
		for k, v := range m {
			wire[string(k)] = v
		}
		posts = append(posts, attemptRequest{
			AttemptID:     uuid.NewString(),
			Metrics:       wire,
			WasSuccessful: rng.IntN(2) == 0,
		})
		unique++
	}
	return posts, unique
}

func runLoad(ctx context.Context, cfg *loadConfig) (LoadReport, error) {
	client := newAPIClient(cfg.baseURL, cfg.timeout)
	if err := client.health(ctx); err != nil {
		return LoadReport{}, fmt.Errorf("service health check failed: %w", err)
	}

	sess, err := client.createSession(ctx, cfg.variant)
	if err != nil {
		return LoadReport{}, fmt.Errorf("create session: %w", err)
	}

	rng := rand.New(rand.NewPCG(cfg.seed, cfg.seed))
	names := []estimator.MetricName{
		estimator.PitcherTimeToPlate, estimator.RunnerSpeed, estimator.JumpQuality,
		estimator.CatcherPopTime, estimator.CatcherThrowVelocity,
	}
	posts, unique := plannedAttempts(rng, names, cfg.attempts, cfg.duplicates)

	var created, duplicate, failed, inFlight int64
	start := time.Now()

	jobs := make(chan attemptRequest, cfg.workers*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				res, conflicts, err := postAttempt(ctx, client, sess.ID, a)
				atomic.AddInt64(&inFlight, int64(conflicts))
				switch {
				case err != nil:
					atomic.AddInt64(&failed, 1)
				case res.Duplicate:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&created, 1)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, a := range posts {
			select {
			case <-ctx.Done():
				return
			case jobs <- a:
			}
		}
	}()
	wg.Wait()

	report := LoadReport{
		SessionID: sess.ID,
		Sent:      len(posts),
		Created:   int(created),
		Duplicate: int(duplicate),
		Failed:    int(failed),
		InFlight:  int(inFlight),
		Duration:  time.Since(start),
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	final, err := client.session(ctx, sess.ID)
	if err != nil {
		return report, fmt.Errorf("fetch session: %w", err)
	}
	history, err := client.attempts(ctx, sess.ID)
	if err != nil {
		return report, fmt.Errorf("fetch attempts: %w", err)
	}
	report.Window = final.Attempts
	report.Capacity = final.Capacity
	report.Problems = verifyLoad(report, unique, posts, history)
	report.Consistent = len(report.Problems) == 0
	return report, nil
}

// postAttempt posts a and re-posts it while the server answers 409. It
// returns the number of 409 answers seen.
func postAttempt(ctx context.Context, c *apiClient, sessionID string, a attemptRequest) (types.AttemptResult, int, error) {
	conflicts := 0
	for {
		res, status, err := c.recordAttempt(ctx, sessionID, a)
		if status != http.StatusConflict {
			return res, conflicts, err
		}
		conflicts++
		select {
		case <-ctx.Done():
			return res, conflicts, ctx.Err()
		case <-time.After(inFlightBackoff):
		}
	}
}

// verifyLoad checks the server state against what was sent.
func verifyLoad(r LoadReport, unique int, posts []attemptRequest, history []types.Attempt) []string {
	var problems []string
	if r.Failed == 0 && r.Created != unique {
		problems = append(problems, fmt.Sprintf("created %d attempts, want %d unique", r.Created, unique))
	}
	if want := min(r.Created, r.Capacity); r.Window != want {
		problems = append(problems, fmt.Sprintf("window holds %d attempts, want %d", r.Window, want))
	}
	if len(history) != r.Window {
		problems = append(problems, fmt.Sprintf("history lists %d attempts, summary says %d", len(history), r.Window))
	}

	sent := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		sent[p.AttemptID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(history))
	for _, a := range history {
		if _, ok := sent[a.ID]; !ok {
			problems = append(problems, "unknown attempt "+a.ID+" in history")
		}
		if _, dup := seen[a.ID]; dup {
			problems = append(problems, "attempt "+a.ID+" recorded twice")
		}
		seen[a.ID] = struct{}{}
	}
	return problems
}

func renderLoad(cmd *cobra.Command, r LoadReport) error {
	rows := [][]string{
		{"Session", r.SessionID},
		{"Sent", strconv.Itoa(r.Sent)},
		{"Created", strconv.Itoa(r.Created)},
		{"Duplicate", strconv.Itoa(r.Duplicate)},
		{"Failed", strconv.Itoa(r.Failed)},
		{"In flight", strconv.Itoa(r.InFlight)},
		{"Window", fmt.Sprintf("%d/%d", r.Window, r.Capacity)},
		{"Duration", r.Duration.Round(time.Millisecond).String()},
	}
	if err := renderTable(out(cmd), []string{"Field", "Value"}, rows); err != nil {
		return err
	}
	if r.Consistent {
		_, err := fmt.Fprintln(out(cmd), outColor.Sprint("✅ history consistent"))
		return err
	}
	for _, p := range r.Problems {
		if _, err := fmt.Fprintln(out(cmd), safeColor.Sprint("❌ "+p)); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %d problems", ErrInconsistent, len(r.Problems))
}
