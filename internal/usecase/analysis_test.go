package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/heritagelens/vision-relay/internal/apperr"
	"github.com/heritagelens/vision-relay/internal/labeler"
	"github.com/heritagelens/vision-relay/internal/logging"
)

var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

type stubDetector struct {
	labels labeler.LabelSet
	err    error
	block  bool
	calls  int
	images [][]byte
}

func (s *stubDetector) DetectLabels(ctx context.Context, image []byte) (labeler.LabelSet, error) {
	s.calls++
	s.images = append(s.images, image)
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.labels, nil
}

func TestAnalyzeImageReturnsLabelsInOrder(t *testing.T) {
	detector := &stubDetector{labels: labeler.LabelSet{"Fort", "Monument", "Sky"}}
	metrics := NewMetrics()
	uc := NewAnalysisUseCase(detector, metrics, time.Second, zap.NewNop())

	labels, err := uc.AnalyzeImage(context.Background(), "req-1", UploadedImage{Data: jpegHeader, ContentType: "image/jpeg", Size: int64(len(jpegHeader))})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(labels) != 3 || labels[0] != "Fort" || labels[1] != "Monument" || labels[2] != "Sky" {
		t.Fatalf("unexpected labels: %v", labels)
	}
	if got := testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("success")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
}

func TestAnalyzeImageEmptyResultIsSuccess(t *testing.T) {
	detector := &stubDetector{}
	uc := NewAnalysisUseCase(detector, nil, time.Second, zap.NewNop())

	labels, err := uc.AnalyzeImage(context.Background(), "req-2", UploadedImage{Data: jpegHeader})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if labels == nil || len(labels) != 0 {
		t.Fatalf("expected empty non-nil labels, got %#v", labels)
	}
}

func TestAnalyzeImageRejectsSpoofedContentWithoutCallingProvider(t *testing.T) {
	detector := &stubDetector{labels: labeler.LabelSet{"never"}}
	metrics := NewMetrics()
	uc := NewAnalysisUseCase(detector, metrics, time.Second, zap.NewNop())

	for _, data := range [][]byte{nil, []byte("plain text pretending to be a jpg")} {
		_, err := uc.AnalyzeImage(context.Background(), "req-3", UploadedImage{Data: data, ContentType: "image/jpeg"})
		if !apperr.Is(err, apperr.InvalidImage) {
			t.Fatalf("expected invalid image, got %v", err)
		}
	}
	if detector.calls != 0 {
		t.Fatalf("expected provider not to be called, got %d calls", detector.calls)
	}
	if got := testutil.ToFloat64(metrics.rejectionsTotal.WithLabelValues("invalid_image")); got != 2 {
		t.Fatalf("expected 2 invalid image rejections, got %v", got)
	}
}

func TestAnalyzeImageProviderFailureIsProcessingFailed(t *testing.T) {
	cause := errors.New("quota exceeded")
	detector := &stubDetector{err: cause}
	uc := NewAnalysisUseCase(detector, NewMetrics(), time.Second, zap.NewNop())

	_, err := uc.AnalyzeImage(context.Background(), "req-4", UploadedImage{Data: jpegHeader})
	if !apperr.Is(err, apperr.ProcessingFailed) {
		t.Fatalf("expected processing failed, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) || opErr.RequestID != "req-4" {
		t.Fatalf("expected OperationError for req-4, got %v", err)
	}
	appErr := apperr.From(err)
	if appErr.Message != "Image processing failed" || appErr.Detail != apperr.RetryHint {
		t.Fatalf("unexpected client message: %+v", appErr)
	}
}

func TestAnalyzeImageTimesOut(t *testing.T) {
	detector := &stubDetector{block: true}
	uc := NewAnalysisUseCase(detector, nil, 20*time.Millisecond, zap.NewNop())

	start := time.Now()
	_, err := uc.AnalyzeImage(context.Background(), "req-5", UploadedImage{Data: jpegHeader})
	if !apperr.Is(err, apperr.ProcessingFailed) {
		t.Fatalf("expected processing failed, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded cause, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout was not enforced")
	}
}

func TestAnalyzeImageDoesNotDeduplicate(t *testing.T) {
	detector := &stubDetector{labels: labeler.LabelSet{"Stupa"}}
	uc := NewAnalysisUseCase(detector, nil, time.Second, zap.NewNop())

	for i := 0; i < 2; i++ {
		if _, err := uc.AnalyzeImage(context.Background(), "req-6", UploadedImage{Data: jpegHeader}); err != nil {
			t.Fatalf("call %d: expected success, got error: %v", i, err)
		}
	}
	if detector.calls != 2 {
		t.Fatalf("expected each upload to reach the provider, got %d calls", detector.calls)
	}
}

func TestNewAnalysisUseCaseDefaultsTimeout(t *testing.T) {
	uc := NewAnalysisUseCase(&stubDetector{}, nil, 0, zap.NewNop())
	if uc.timeout != DefaultProviderTimeout {
		t.Fatalf("expected default timeout, got %v", uc.timeout)
	}
}
