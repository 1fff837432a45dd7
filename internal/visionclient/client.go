package visionclient

import (
	"context"
	"errors"
	"math"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"

	"github.com/heritagelens/vision-relay/internal/config"
	"github.com/heritagelens/vision-relay/internal/labeler"
	"github.com/heritagelens/vision-relay/internal/logging"
)

// DefaultMaxResults matches the label count Cloud Vision client libraries
// request when none is given.
const DefaultMaxResults = 10

var errEmptyResponse = errors.New("vision returned no annotate response")

// Annotator is the subset of the Cloud Vision API used for label detection.
type Annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
}

// DialLabelDetector returns a ready-to-use label detector backed by Cloud Vision.
// The returned client must be closed by the caller.
func DialLabelDetector(ctx context.Context, creds *config.Credentials, maxResults int, logger *zap.Logger) (labeler.Detector, *vision.ImageAnnotatorClient, error) {
	if creds == nil {
		return nil, nil, logging.NewOperationError("visionclient.dial", "", errors.New("credentials are required"))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON(creds.JSON))
	if err != nil {
		wrapped := logging.NewOperationError("visionclient.dial", "", err)
		logger.Error("failed to create vision client", zap.Error(wrapped), zap.String("project_id", creds.ProjectID))
		return nil, nil, wrapped
	}
	return New(client, maxResults, logger), client, nil
}

// New wraps an Annotator as a label detector.
func New(annotator Annotator, maxResults int, logger *zap.Logger) *Detector {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults > math.MaxInt32 {
		maxResults = math.MaxInt32
	}
	return &Detector{annotator: annotator, maxResults: int32(maxResults), logger: logger.Named("vision")}
}

// Detector issues one label detection request per image.
type Detector struct {
	annotator  Annotator
	maxResults int32
	logger     *zap.Logger
}

// DetectLabels returns label descriptions in provider order.
func (d *Detector) DetectLabels(ctx context.Context, image []byte) (labeler.LabelSet, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{Content: image},
			Features: []*visionpb.Feature{{
				Type:       visionpb.Feature_LABEL_DETECTION,
				MaxResults: d.maxResults,
			}},
		}},
	}

	resp, err := d.annotator.BatchAnnotateImages(ctx, req)
	if err != nil {
		wrapped := logging.NewOperationError("visionclient.label_detection", "", err)
		d.logger.Error("label detection call failed", zap.Error(wrapped), zap.String("grpc_code", status.Code(err).String()))
		return nil, wrapped
	}

	responses := resp.GetResponses()
	if len(responses) == 0 {
		return nil, logging.NewOperationError("visionclient.label_detection", "", errEmptyResponse)
	}
	result := responses[0]
	if st := result.GetError(); st != nil && st.GetCode() != 0 {
		err := status.ErrorProto(st)
		d.logger.Error("label detection rejected image", zap.Error(err), zap.String("grpc_code", status.Code(err).String()))
		return nil, logging.NewOperationError("visionclient.label_detection", "", err)
	}

	annotations := result.GetLabelAnnotations()
	labels := make(labeler.LabelSet, 0, len(annotations))
	for _, a := range annotations {
		labels = append(labels, a.GetDescription())
	}
	return labels, nil
}
