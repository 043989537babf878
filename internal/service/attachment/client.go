// Package attachment содержит HTTP-клиент сервиса картинок. Сервис принимает
// файл и возвращает стабильный URL; ядро хранит только этот URL.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/tracing"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	defaultTimeout = 10 * time.Second
	uploadPath     = "/v1/files"
)

// ErrUpload возвращается, если сервис не принял файл или ответил без URL.
var ErrUpload = errors.New("attachment upload failed")

type uploadResponse struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Client загружает файлы в сервис вложений.
type Client struct {
	http   *resty.Client
	logger *log.Entry
}

// NewClient создаёт клиента для сервиса по адресу baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *log.Entry) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = log.New().WithField("component", "attachment-client")
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.UserAgent())

	return &Client{http: httpClient, logger: logger}
}

// Upload отправляет файл multipart-запросом и возвращает URL из ответа.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (url string, err error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "", domain.InvalidField("filename", "is required")
	}
	if content == nil {
		return "", domain.InvalidField("content", "is required")
	}

	ctx, span := tracing.Tracer().Start(ctx, "attachment.Upload")
	span.SetAttributes(attribute.String("attachment.filename", filename))
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	var (
		result  uploadResponse
		failure errorResponse
	)
	req := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, content).
		SetResult(&result).
		SetError(&failure)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := req.Post(uploadPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}
	if resp.IsError() {
		c.logger.WithFields(log.Fields{
			"filename": filename,
			"status":   resp.StatusCode(),
		}).Warn("attachment service rejected upload")
		msg := failure.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrUpload, resp.StatusCode(), msg)
	}
	if strings.TrimSpace(result.URL) == "" {
		return "", fmt.Errorf("%w: empty url in response", ErrUpload)
	}

	c.logger.WithField("filename", filename).Debug("attachment uploaded")
	return result.URL, nil
}

var _ domain.AttachmentService = (*Client)(nil)
