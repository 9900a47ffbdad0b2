package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/config"
	"presence-service/internal/domain"
	"presence-service/internal/metrics"
	"presence-service/internal/repository"
)

const (
	InactivityJobName = "inactivity-scan"
	StaleScoreJobName = "stale-score-scan"

	defaultBatchSize = 500
	lowScoreLimit    = 50
)

// Inactivity rules, most specific first.
var inactivityRules = []Rule{
	{
		Name:    "unread_opportunities",
		Matches: func(uc UserContext) bool { return uc.UnreadOpportunities > 0 },
		Template: func(uc UserContext) Template {
			return Template{
				Title:     "Sentimos sua falta!",
				Message:   fmt.Sprintf("Você tem %d oportunidades tributárias esperando por você.", uc.UnreadOpportunities),
				ActionURL: "/oportunidades",
			}
		},
	},
	{
		Name:    "no_score",
		Matches: func(uc UserContext) bool { return !uc.HasScore },
		Template: func(uc UserContext) Template {
			return Template{
				Title:     "Sentimos sua falta!",
				Message:   "Calcule seu Score Tributário e descubra onde sua empresa pode economizar.",
				ActionURL: "/score-tributario",
			}
		},
	},
	{
		Name:    "default",
		Matches: always,
		Template: func(uc UserContext) Template {
			return Template{
				Title:     "Sentimos sua falta!",
				Message:   fmt.Sprintf("Faz %d dias que você não aparece. Veja as novidades no seu painel.", uc.DaysSince()),
				ActionURL: "/dashboard",
			}
		},
	},
}

// NewInactivityScanner notifies onboarded users whose last activity is older than the threshold.
func NewInactivityScanner(
	cfg config.ScanJobConfig,
	presenceRepo repository.PresenceRepository,
	scoreRepo repository.ScoreRepository,
	notificationRepo repository.NotificationRepository,
	notifier Notifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Scanner {
	candidates := func(ctx context.Context, cutoff time.Time, after uuid.UUID, limit int) ([]UserContext, error) {
		rows, err := presenceRepo.FindInactiveCandidates(ctx, cutoff, after, limit)
		if err != nil {
			return nil, err
		}
		out := make([]UserContext, len(rows))
		for i, r := range rows {
			out[i] = UserContext{UserID: r.UserID, Reference: r.LastActiveAt}
		}
		return out, nil
	}

	enrich := func(ctx context.Context, uc *UserContext) error {
		unread, err := scoreRepo.CountUnreadOpportunities(ctx, uc.UserID)
		if err != nil {
			return err
		}
		uc.UnreadOpportunities = unread
		if unread > 0 {
			return nil
		}
		hasScore, err := scoreRepo.HasScore(ctx, uc.UserID)
		if err != nil {
			return err
		}
		uc.HasScore = hasScore
		return nil
	}

	return newScanner(InactivityJobName, domain.CategorySaudade, "", cfg,
		candidates, enrich, inactivityRules, notificationRepo, notifier, m, logger)
}

// Stale score rules.
var staleScoreRules = []Rule{
	{
		Name:    "low_score",
		Matches: func(uc UserContext) bool { return uc.Score < lowScoreLimit },
		Template: func(uc UserContext) Template {
			return Template{
				Title:     "Seu Score Tributário pode melhorar",
				Message:   fmt.Sprintf("Seu score está em %.0f e não é atualizado há %d dias. Veja as ações recomendadas para subir sua nota.", uc.Score, uc.DaysSince()),
				ActionURL: "/score-tributario",
			}
		},
	},
	{
		Name:    "default",
		Matches: always,
		Template: func(uc UserContext) Template {
			return Template{
				Title:     "Hora de atualizar seu Score Tributário",
				Message:   fmt.Sprintf("Seu score não é recalculado há %d dias. Recalcule para refletir a situação atual da sua empresa.", uc.DaysSince()),
				ActionURL: "/score-tributario",
			}
		},
	},
}

// NewStaleScoreScanner notifies users whose positive tax score has not been recalculated recently.
func NewStaleScoreScanner(
	cfg config.ScanJobConfig,
	scoreRepo repository.ScoreRepository,
	notificationRepo repository.NotificationRepository,
	notifier Notifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Scanner {
	candidates := func(ctx context.Context, cutoff time.Time, after uuid.UUID, limit int) ([]UserContext, error) {
		rows, err := scoreRepo.FindStaleScores(ctx, cutoff, after, limit)
		if err != nil {
			return nil, err
		}
		out := make([]UserContext, len(rows))
		for i, r := range rows {
			out[i] = UserContext{
				UserID:    r.UserID,
				Reference: r.UpdatedAt,
				Score:     r.Score,
				HasScore:  true,
			}
		}
		return out, nil
	}

	return newScanner(StaleScoreJobName, domain.CategoryStaleScore, "%Score%", cfg,
		candidates, nil, staleScoreRules, notificationRepo, notifier, m, logger)
}

func newScanner(
	name string,
	category domain.NotificationCategory,
	titlePattern string,
	cfg config.ScanJobConfig,
	candidates CandidateFunc,
	enrich EnrichFunc,
	rules []Rule,
	notificationRepo repository.NotificationRepository,
	notifier Notifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Scanner {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if notifier == nil {
		notifier = NewNotifier(nil, nil, m, logger)
	}
	return &Scanner{
		name:          name,
		category:      category,
		titlePattern:  titlePattern,
		threshold:     cfg.Threshold,
		cooldown:      cfg.Cooldown,
		batchSize:     batchSize,
		candidates:    candidates,
		enrich:        enrich,
		rules:         rules,
		notifications: notificationRepo,
		notifier:      notifier,
		metrics:       m,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}
