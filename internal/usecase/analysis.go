package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/heritagelens/vision-relay/internal/apperr"
	"github.com/heritagelens/vision-relay/internal/imagecheck"
	"github.com/heritagelens/vision-relay/internal/labeler"
	"github.com/heritagelens/vision-relay/internal/logging"
)

// DefaultProviderTimeout bounds a single label detection call.
const DefaultProviderTimeout = 15 * time.Second

// UploadedImage is a request-scoped upload held fully in memory.
type UploadedImage struct {
	Data        []byte
	ContentType string
	Size        int64
}

// AnalysisUseCase validates image content and relays it to the label detector.
type AnalysisUseCase struct {
	detector labeler.Detector
	metrics  *Metrics
	logger   *zap.Logger
	timeout  time.Duration
}

// NewAnalysisUseCase constructs a new use case instance. A non-positive
// timeout falls back to DefaultProviderTimeout.
func NewAnalysisUseCase(detector labeler.Detector, metrics *Metrics, timeout time.Duration, logger *zap.Logger) *AnalysisUseCase {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &AnalysisUseCase{
		detector: detector,
		metrics:  metrics,
		logger:   logger.Named("analysis_usecase"),
		timeout:  timeout,
	}
}

// Metrics returns the collectors the use case records into.
func (uc *AnalysisUseCase) Metrics() *Metrics {
	return uc.metrics
}

// AnalyzeImage checks the image signature, then performs exactly one label
// detection call. An empty label set is a success.
func (uc *AnalysisUseCase) AnalyzeImage(ctx context.Context, requestID string, img UploadedImage) (labeler.LabelSet, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.analyze_image", requestID)

	if err := imagecheck.CheckContent(img.Data); err != nil {
		opLogger.Warn("rejected image content", zap.Error(err), zap.String("content_type", img.ContentType))
		uc.metrics.RecordRejection(apperr.From(err).Kind)
		return nil, err
	}

	opLogger.Info("processing image",
		zap.String("content_type", img.ContentType),
		zap.Int64("size", img.Size),
	)

	callCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	start := time.Now()
	labels, err := uc.detector.DetectLabels(callCtx, img.Data)
	elapsed := time.Since(start)
	uc.metrics.recordProviderCall(elapsed, err)

	if err != nil {
		wrapped := logging.NewOperationError("usecase.label_detection", requestID, err)
		fields := []zap.Field{zap.Error(wrapped), zap.Duration("elapsed", elapsed)}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			fields = append(fields, zap.Duration("timeout", uc.timeout))
			opLogger.Error("label detection timed out", fields...)
		} else {
			opLogger.Error("label detection failed", fields...)
		}
		uc.metrics.recordFailure()
		return nil, apperr.Processing(wrapped)
	}

	if labels == nil {
		labels = labeler.LabelSet{}
	}
	uc.metrics.recordSuccess(len(labels))
	opLogger.Info("image analyzed", zap.Int("labels", len(labels)), zap.Duration("elapsed", elapsed))
	return labels, nil
}
