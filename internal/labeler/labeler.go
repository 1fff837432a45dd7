package labeler

import "context"

// LabelSet is the ordered list of label descriptions returned for one image.
type LabelSet []string

// Detector exposes the label detection capability used by the analysis flow.
type Detector interface {
	DetectLabels(ctx context.Context, image []byte) (LabelSet, error)
}
