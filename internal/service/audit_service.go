package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tuncerburak97/bekci/internal/apierr"
	"github.com/tuncerburak97/bekci/internal/config"
	"github.com/tuncerburak97/bekci/internal/masking"
	"github.com/tuncerburak97/bekci/internal/metrics"
	"github.com/tuncerburak97/bekci/internal/model"
	"github.com/tuncerburak97/bekci/internal/repository"
)

// AuditService turns completed requests into gateway_logs rows. Records
// are assembled synchronously (cheap: masking + truncation) but persisted
// by background workers in batches, so the response path never waits on
// the store and store failures never reach the client.
type AuditService struct {
	repo          repository.LogRepository
	recordChan    chan *model.GatewayLog
	workerCount   int
	batchSize     int
	flushInterval time.Duration
	wg            sync.WaitGroup
	done          chan struct{}
	closeOnce     sync.Once
	metrics       *metrics.MetricsCollector
	logger        *zerolog.Logger
}

func NewAuditService(repo repository.LogRepository, m *metrics.MetricsCollector, cfg config.AuditConfig, logger *zerolog.Logger) *AuditService {
	s := &AuditService{
		repo:          repo,
		recordChan:    make(chan *model.GatewayLog, cfg.BufferSize),
		workerCount:   cfg.Workers,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		done:          make(chan struct{}),
		metrics:       m,
		logger:        logger,
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.processRecords()
	}
	go s.monitorQueue()

	return s
}

// LogOnce is the single entry point for every completion path. The first
// caller wins the context's completion gate and enqueues the record;
// later callers are silent no-ops. Always safe to call, from any
// goroutine, any number of times.
func (s *AuditService) LogOnce(rc *model.RequestContext, statusCode int, cause error) {
	if rc == nil {
		return
	}
	if !rc.FireOnce() {
		return
	}

	record := s.buildRecord(rc, statusCode, cause)

	select {
	case s.recordChan <- record:
	default:
		// Queue full. Dropping beats blocking a response path.
		s.metrics.IncAuditDropped()
		s.logger.Warn().
			Str("trace_id", record.TraceID).
			Msg("Audit queue full, dropping record")
	}
}

func (s *AuditService) buildRecord(rc *model.RequestContext, statusCode int, cause error) *model.GatewayLog {
	respondedAt := time.Now()
	latency := respondedAt.Sub(rc.StartedAt)

	path := "unknown"
	if rc.Route != nil {
		path = rc.Route.Path
	}

	record := &model.GatewayLog{
		LogID:       uuid.New().String(),
		TraceID:     rc.TraceID,
		UserID:      rc.UserID,
		ApiID:       rc.ApiID,
		Method:      rc.Method,
		Path:        path,
		QueryParam:  masking.Truncate(rc.QueryString, masking.MaxQueryLen),
		Headers:     masking.Headers(rc.Headers),
		Body:        masking.Truncate(masking.Body(rc.RequestBody, rc.ContentType), masking.MaxBodyLen),
		StatusCode:  statusCode,
		Response:    masking.Truncate(rc.ResponseBody(), masking.MaxResponseLen),
		RequestedAt: respondedAt.Add(-latency),
		RespondedAt: respondedAt,
		LatencyMs:   latency.Milliseconds(),
		ClientIP:    rc.ClientIP,
		UserAgent:   masking.Truncate(rc.UserAgent, masking.MaxUserAgent),
	}

	if cause == nil {
		record.IsSuccess = model.SuccessYes
	} else {
		record.IsSuccess = model.SuccessNo
		record.ErrorMessage = masking.Truncate(apierr.Synthesize(cause), masking.MaxErrorLen)
		s.metrics.LogError(apierr.From(cause).Code)
	}

	return record
}

func (s *AuditService) processRecords() {
	defer s.wg.Done()

	ctx := context.Background()
	batch := make([]*model.GatewayLog, 0, s.batchSize)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			// Drain whatever is still queued before exiting.
			for {
				select {
				case record := <-s.recordChan:
					batch = append(batch, record)
					if len(batch) >= s.batchSize {
						s.saveBatch(ctx, batch)
						batch = batch[:0]
					}
				default:
					if len(batch) > 0 {
						s.saveBatch(ctx, batch)
					}
					return
				}
			}
		case record := <-s.recordChan:
			batch = append(batch, record)
			if len(batch) >= s.batchSize {
				s.saveBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.saveBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *AuditService) saveBatch(ctx context.Context, batch []*model.GatewayLog) {
	start := time.Now()
	if err := s.repo.SaveLogs(ctx, batch); err != nil {
		// Operational log only; never surfaces to a request.
		s.metrics.LogError("audit_batch_save")
		s.logger.Error().Err(err).
			Int("batch_size", len(batch)).
			Msg("Failed to save gateway log batch")
		return
	}
	s.metrics.ObserveAuditBatchSave("log_db", time.Since(start))
}

func (s *AuditService) monitorQueue() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.metrics.ObserveAuditQueueSize(float64(len(s.recordChan)))
		}
	}
}

// Shutdown stops the workers after draining queued records.
func (s *AuditService) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}
