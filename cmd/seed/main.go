package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"majorcompass/internal/catalog"
	"majorcompass/internal/config"
	"majorcompass/internal/logger"
	"majorcompass/internal/model"
	"majorcompass/internal/repository"
	"majorcompass/internal/survey"
)

var rootCmd = &cobra.Command{
	Use:   "majorcompass-seed",
	Short: "Write demo assessment results to MongoDB",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		count, _ := cmd.Flags().GetInt("count")
		days, _ := cmd.Flags().GetInt("days")
		skipRate, _ := cmd.Flags().GetFloat64("skip-rate")
		return run(path, count, days, skipRate)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().String("config", "", "Path to config file (default ./config.yaml)")
	rootCmd.Flags().Int("count", 50, "Number of results to generate")
	rootCmd.Flags().Int("days", 30, "Spread creation times over this many past days")
	rootCmd.Flags().Float64("skip-rate", 0.2, "Share of results that skip the supplementary survey")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// repoStore saves straight to MongoDB
type repoStore struct {
	repo repository.ResultRepo
	rng  *rand.Rand
}

func (s *repoStore) NewCode(ctx context.Context) (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	for attempt := 0; attempt < 10; attempt++ {
		b := make([]byte, 8)
		for i := range b {
			b[i] = alphabet[s.rng.IntN(len(alphabet))]
		}
		code := string(b)
		taken, err := s.repo.Exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free result code after 10 attempts")
}

func (s *repoStore) Save(ctx context.Context, rec *model.ResultRecord) error {
	return s.repo.Create(ctx, rec)
}

// discardSnapshots drops resume snapshots; seeded sessions never resume
type discardSnapshots struct{}

func (discardSnapshots) Save(ctx context.Context, snap *model.Snapshot) error { return nil }
func (discardSnapshots) Load(ctx context.Context, id string) (*model.Snapshot, error) {
	return nil, nil
}
func (discardSnapshots) Delete(ctx context.Context, id string) error { return nil }

func run(configPath string, count, days int, skipRate float64) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.InitLogger(cfg.Log)
	defer logger.Sync()

	if count <= 0 || days <= 0 {
		return fmt.Errorf("--count and --days must be positive")
	}

	cat, err := catalog.Default()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer client.Disconnect(context.Background())
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	repo := repository.NewResultRepo(client.Database(cfg.Mongo.Database))
	repo.EnsureIndexes(ctx)

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6d616a6f72))
	store := &repoStore{repo: repo, rng: rng}
	now := time.Now()
	window := time.Duration(days) * 24 * time.Hour

	for i := 0; i < count; i++ {
		created := now.Add(-time.Duration(rng.Int64N(int64(window))))
		e := survey.NewEngine(fmt.Sprintf("seed-%d", i), survey.Options{
			Catalog:        cat,
			Results:        store,
			Snapshots:      discardSnapshots{},
			RecommendCount: cfg.Results.RecommendCount,
			Now:            func() time.Time { return created },
		})
		if rng.Float64() < 0.6 {
			e.SetIdentity(&model.Identity{StudentID: fmt.Sprintf("2024%04d", rng.IntN(10000))}, model.DeviceInfo{})
		}

		if err := complete(ctx, e, cat, rng, rng.Float64() < skipRate); err != nil {
			return fmt.Errorf("result %d: %w", i, err)
		}
		logger.Log.Info("seeded result",
			zap.String("code", e.Result().Code),
			zap.String("holland", e.Result().HollandCode),
			zap.Bool("skipped", e.Result().SupplementarySkipped),
		)
	}

	fmt.Printf("Seeded %d results into %s.results\n", count, cfg.Mongo.Database)
	return nil
}

// complete drives e from intro to complete with random answers
func complete(ctx context.Context, e *survey.Engine, cat *catalog.Catalog, rng *rand.Rand, skip bool) error {
	if err := e.GoNext(ctx); err != nil {
		return err
	}
	cluster := cat.Clusters[rng.IntN(len(cat.Clusters))]
	if err := e.SelectCluster(ctx, cluster.ID); err != nil {
		return err
	}
	if err := e.StartPreview(ctx); err != nil {
		return err
	}
	for e.Phase() == model.PhasePrimaryInstrument {
		side := model.SideA
		if rng.IntN(2) == 1 {
			side = model.SideB
		}
		if err := e.AnswerPrimaryItem(ctx, side); err != nil {
			return err
		}
	}

	if skip {
		return e.SkipSupplementary(ctx)
	}
	if err := e.GoNext(ctx); err != nil {
		return err
	}

	for e.Phase() == model.PhaseSupplementary {
		q := e.CurrentQuestion()
		if q == nil {
			return fmt.Errorf("supplementary survey has no current question")
		}
		if q.Type == model.QuestionTypeText {
			if err := e.GoNext(ctx); err != nil {
				return err
			}
			continue
		}
		advanced, err := e.AnswerSupplementaryItem(ctx, randomAnswer(q, rng))
		if err != nil {
			return err
		}
		if !advanced {
			if err := e.GoNext(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func randomAnswer(q *model.QuestionDefinition, rng *rand.Rand) model.AnswerValue {
	switch q.Type {
	case model.QuestionTypeScale:
		return model.Number(float64(q.ScaleMin + rng.IntN(q.ScaleMax-q.ScaleMin+1)))
	case model.QuestionTypeSingle:
		return model.Text(q.Options[rng.IntN(len(q.Options))])
	case model.QuestionTypeMulti:
		max := q.MaxSelections
		if max <= 0 || max > len(q.Options) {
			max = len(q.Options)
		}
		perm := rng.Perm(len(q.Options))[:1+rng.IntN(max)]
		picked := make([]string, len(perm))
		for i, idx := range perm {
			picked[i] = q.Options[idx]
		}
		return model.List(picked...)
	case model.QuestionTypeRank:
		max := q.MaxRank
		if max <= 0 || max > len(q.Options) {
			max = len(q.Options)
		}
		ranks := make(map[string]int, max)
		for i, idx := range rng.Perm(len(q.Options))[:max] {
			ranks[q.Options[idx]] = i + 1
		}
		return model.Ranking(ranks)
	}
	return model.Text("")
}
