package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/heritagelens/vision-relay/internal/apperr"
	"github.com/heritagelens/vision-relay/internal/imagecheck"
	"github.com/heritagelens/vision-relay/internal/usecase"
)

// MaxUploadSize is the largest accepted image.
const MaxUploadSize = imagecheck.MaxUploadSize

// maxRequestBodySize caps the whole multipart body, leaving room for framing
// and small form fields around a maximum-size image.
const maxRequestBodySize = MaxUploadSize + 1<<20

const (
	imageField   = "image"
	errorKindKey = "error_kind"
)

var errMissingInput = apperr.New(apperr.MissingInput, "No image file provided")

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc *usecase.AnalysisUseCase, authMiddleware gin.HandlerFunc) {
	if authMiddleware == nil {
		authMiddleware = func(c *gin.Context) { c.Next() }
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(uc.Metrics().Handler()))

	router.POST("/analyze", authMiddleware, func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodySize)

		part, err := nextImagePart(c.Request)
		if err != nil {
			if isBodyTooLarge(err) {
				respondRejection(c, uc, imagecheck.TooLarge(err))
				return
			}
			respondRejection(c, uc, errMissingInput.Wrap(err))
			return
		}
		defer part.Close()

		// the declared type is rejected before any of the part body is read
		contentType := part.Header.Get("Content-Type")
		if err := imagecheck.CheckContentType(contentType); err != nil {
			respondRejection(c, uc, err)
			return
		}

		data, err := io.ReadAll(io.LimitReader(part, MaxUploadSize+1))
		if err != nil {
			if isBodyTooLarge(err) {
				respondRejection(c, uc, imagecheck.TooLarge(err))
				return
			}
			respondError(c, apperr.Processing(err))
			return
		}
		if err := imagecheck.CheckSize(int64(len(data))); err != nil {
			respondRejection(c, uc, err)
			return
		}

		labels, err := uc.AnalyzeImage(c.Request.Context(), c.GetString(requestIDKey), usecase.UploadedImage{
			Data:        data,
			ContentType: contentType,
			Size:        int64(len(data)),
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"labels": labels})
	})
}

// nextImagePart advances the multipart stream to the first file part named
// imageField. Other parts are discarded.
func nextImagePart(r *http.Request) (*multipart.Part, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, http.ErrMissingFile
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == imageField && part.FileName() != "" {
			return part, nil
		}
		_, err = io.Copy(io.Discard, part)
		part.Close()
		if err != nil {
			return nil, err
		}
	}
}

// respondRejection reports a failure detected before the use case runs.
func respondRejection(c *gin.Context, uc *usecase.AnalysisUseCase, err error) {
	uc.Metrics().RecordRejection(apperr.From(err).Kind)
	respondError(c, err)
}

func respondError(c *gin.Context, err error) {
	appErr := apperr.From(err)
	_ = c.Error(err)
	c.Set(errorKindKey, appErr.Kind)

	body := gin.H{"error": appErr.Message}
	if appErr.Detail != "" {
		body["detail"] = appErr.Detail
	}
	c.AbortWithStatusJSON(appErr.Kind.Status(), body)
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
