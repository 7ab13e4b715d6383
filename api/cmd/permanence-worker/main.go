package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"gatehouse/api/internal/gate"
	"gatehouse/api/internal/models"
	"gatehouse/api/internal/repos"
	"gatehouse/shared/cachex"
	"gatehouse/shared/config"
	"gatehouse/shared/dbx"
	"gatehouse/shared/events"
	"gatehouse/shared/influxx"
	"gatehouse/shared/logx"
	"gatehouse/shared/metricsx"
	"gatehouse/shared/mqx"
	"gatehouse/shared/observability"
)

const noticeChannel = "overstay.alerts"

func main() {
	cfg, problems := config.Load("permanence-worker", 8084)
	version := strings.TrimSpace(os.Getenv("VERSION"))
	logger := logx.New(cfg.ServiceName, cfg.Env, version, cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		problems = append(problems, config.Problem{Field: "DATABASE_URL", Message: "DATABASE_URL is required"})
	}
	if len(problems) > 0 {
		logger.Error(context.Background(), "config_invalid", "invalid config",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.Any("problems", problems),
		)
		os.Exit(1)
	}

	if cfg.OtelEnabled {
		if shutdown, err := observability.InitTracer(context.Background(), observability.TracerConfig{
			ServiceName: cfg.ServiceName,
			Env:         cfg.Env,
			Endpoint:    cfg.OtelEndpoint,
			Insecure:    cfg.OtelInsecure,
			SampleRatio: cfg.OtelSampleRatio,
		}); err == nil {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	dbPool, err := dbx.NewPool(cfg)
	if err != nil {
		logger.Error(context.Background(), "db_init_failed", "db init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer dbPool.Close()

	admissionsRepo := repos.NewAdmissionsRepo(dbPool)

	var producer *mqx.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = mqx.NewProducer(cfg)
		if err != nil {
			logger.Warn(context.Background(), "kafka_init_failed", "kafka producer init failed",
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
			)
		}
	}
	if producer != nil {
		defer producer.Close()
	}

	var cacheClient *cachex.Client
	if cfg.RedisAddr != "" {
		cacheClient, err = cachex.New(cfg)
		if err != nil {
			logger.Warn(context.Background(), "redis_init_failed", "redis init failed",
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
			)
		}
	}
	if cacheClient != nil {
		defer cacheClient.Close()
	}

	var influxClient *influxx.Client
	if cfg.InfluxURL != "" && cfg.InfluxToken != "" && cfg.InfluxOrg != "" && cfg.InfluxBucket != "" {
		influxClient, err = influxx.New(cfg)
		if err != nil {
			logger.Warn(context.Background(), "influx_init_failed", "influx init failed",
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
			)
		}
	}
	if influxClient != nil {
		defer influxClient.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	scanner := &overstayScanner{
		admissions: admissionsRepo,
		producer:   producer,
		cache:      cacheClient,
		influx:     influxClient,
		logger:     logger,
		cooldown:   time.Duration(cfg.OverstayCooldownSec) * time.Second,
		thresholds: gate.PermanenceThresholds{
			EarlyWarnMinutes: cfg.PermanenceWarnMin,
			HardMaxMinutes:   cfg.PermanenceMaxMin,
		},
		notified: make(map[uuid.UUID]time.Time),
	}

	interval := time.Duration(cfg.PermanenceScanSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info(ctx, "worker_start", "permanence worker started",
		slog.Int("scan_interval_sec", cfg.PermanenceScanSec),
		slog.Int("early_warn_min", cfg.PermanenceWarnMin),
		slog.Int("hard_max_min", cfg.PermanenceMaxMin),
	)

	scanner.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), "worker_stop", "permanence worker stopped")
			return
		case <-ticker.C:
			scanner.scan(ctx)
		}
	}
}

type overstayScanner struct {
	admissions *repos.AdmissionsRepo
	producer   *mqx.Producer
	cache      *cachex.Client
	influx     *influxx.Client
	logger     logx.Logger
	cooldown   time.Duration
	thresholds gate.PermanenceThresholds

	mu       sync.Mutex
	notified map[uuid.UUID]time.Time
}

func (s *overstayScanner) scan(ctx context.Context) {
	tctx, span := otel.Tracer("permanence-worker").Start(ctx, "overstay.scan")
	defer span.End()

	now := time.Now().UTC()
	open, err := s.admissions.ListOpenAllSites(tctx)
	if err != nil {
		s.logger.Error(tctx, "overstay_scan_failed", "failed to list open admissions",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
		return
	}
	span.SetAttributes(attribute.Int("admissions.open", len(open)))

	byCategory := make(map[string]int)
	bySite := make(map[uuid.UUID]map[string]int)
	overstayed := 0
	for _, rec := range open {
		byCategory[rec.Category]++
		if bySite[rec.SiteID] == nil {
			bySite[rec.SiteID] = make(map[string]int)
		}
		bySite[rec.SiteID][rec.Category]++

		report := s.thresholds.ClassifySince(rec.EnteredAt, now)
		if report.State == gate.PermanenceNormal {
			continue
		}
		overstayed++
		if !s.shouldNotify(tctx, rec.AdmissionID, now) {
			continue
		}
		s.notify(tctx, rec, report, now)
	}

	for category, n := range byCategory {
		metricsx.SetOpenAdmissions(category, n)
	}
	metricsx.SetOverstayedAdmissions(overstayed)

	for siteID, categories := range bySite {
		if s.influx != nil {
			for category, n := range categories {
				if err := s.influx.WritePoint(tctx, "site_occupancy", map[string]string{
					"site_id":  siteID.String(),
					"category": category,
				}, map[string]any{
					"open_admissions": n,
				}, now); err != nil {
					metricsx.IncInfluxWriteFailure()
				}
			}
		}
		if s.producer != nil {
			sample, err := json.Marshal(map[string]any{
				"site_id":     siteID,
				"by_category": categories,
				"sampled_at":  now,
			})
			if err != nil {
				continue
			}
			_ = s.producer.Publish(tctx, events.TopicOccupancyMetrics, []byte(siteID.String()), sample, map[string]string{
				"site_id": siteID.String(),
			})
		}
	}
}

// shouldNotify rate-limits notices per admission. Redis backs the cooldown
// when available so replicas share it; the local map covers the rest.
func (s *overstayScanner) shouldNotify(ctx context.Context, admissionID uuid.UUID, now time.Time) bool {
	if s.cache != nil {
		key := "overstay:notice:" + admissionID.String()
		ok, err := s.cache.Client().SetNX(ctx, key, now.Format(time.RFC3339), s.cooldown).Result()
		if err == nil {
			return ok
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	last, seen := s.notified[admissionID]
	if seen && now.Sub(last) < s.cooldown {
		return false
	}
	s.notified[admissionID] = now
	return true
}

func (s *overstayScanner) notify(ctx context.Context, rec models.AdmissionRecord, report gate.PermanenceReport, now time.Time) {
	body, err := json.Marshal(map[string]any{
		"admission_id":      rec.AdmissionID,
		"cedula":            rec.Cedula,
		"full_name":         rec.FullName,
		"category":          rec.Category,
		"badge_code":        rec.BadgeCode,
		"entered_at":        rec.EnteredAt,
		"state":             report.State,
		"elapsed_minutes":   report.ElapsedMinutes,
		"remaining_minutes": report.RemainingMinutes,
		"message":           report.Message,
	})
	if err != nil {
		return
	}
	envelope := events.Envelope{
		EventID:       uuid.New(),
		SiteID:        rec.SiteID,
		OccurredAt:    now,
		AggregateType: events.AggregateTypeAdmission,
		AggregateID:   rec.AdmissionID,
		EventType:     events.EventOverstayNotice,
		Payload:       body,
	}
	wire, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	if s.producer != nil {
		if err := s.producer.Publish(ctx, events.TopicOverstayNotices, []byte(rec.AdmissionID.String()), wire, map[string]string{
			"site_id": rec.SiteID.String(),
		}); err != nil {
			s.logger.Error(ctx, "overstay_publish_failed", "failed to publish overstay notice",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("admission_id", rec.AdmissionID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.cache != nil {
		_ = s.cache.Client().Publish(ctx, noticeChannel, rec.SiteID.String()+":"+string(body)).Err()
	}
	s.logger.Warn(ctx, "overstay_notice", "admission past permanence threshold",
		slog.String("site_id", rec.SiteID.String()),
		slog.String("admission_id", rec.AdmissionID.String()),
		slog.String("cedula", rec.Cedula),
		slog.String("state", string(report.State)),
		slog.Int("elapsed_minutes", report.ElapsedMinutes),
	)
}
