package skill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/wolfeidau/catso"
	"github.com/wolfeidau/catso/cache"
	"github.com/wolfeidau/catso/telemetry"
)

// DefaultPhotoIntent is the intent that asks for a photo.
const DefaultPhotoIntent = "GETCATPHOTOINTENT"

// Fixed skill texts.
const (
	welcomeTitle    = "Welcome"
	welcomeSpeech   = "Welcome to Catso. Ask me for some photos."
	welcomeReprompt = "Would you like a cat photo?"

	photoTitle  = "Cat Photos"
	photoSpeech = "I have sent a cat photo to your phone. Check the Alexa app."
	photoText   = "Here is a cat photo:"
	photoError  = "There was a problem getting a photo. Please try again later."

	endTitle = "Session Ended"

	fallbackTitle  = "Catso"
	fallbackSpeech = "Sorry, I can't help with that. Ask me for a cat photo."
)

// Request outcomes reported to metrics.
const (
	outcomeSuccess  = "success"
	outcomeError    = "error"
	outcomeFallback = "fallback"
	outcomeRejected = "rejected"
)

// ImageSource returns the current image pairs of a category.
type ImageSource interface {
	GetImages(ctx context.Context, category string) ([]catso.ImagePair, cache.Result, error)
}

// Config holds handler configuration.
type Config struct {
	// ApplicationID is the expected skill id. Empty disables the check.
	ApplicationID string

	// StrictApplicationID rejects mismatched events instead of logging them.
	StrictApplicationID bool

	// PhotoIntent is the intent name served with a photo.
	PhotoIntent string

	// Category is passed to the image source.
	Category string

	// Pick chooses the index of the pair to present from n cached pairs.
	Pick func(n int) int

	// Logger for request events.
	Logger *slog.Logger
}

// Handler routes skill events. It performs no business logic itself.
type Handler struct {
	config Config
	images ImageSource
	logger *slog.Logger
}

// NewHandler creates a skill handler.
func NewHandler(images ImageSource, cfg Config) *Handler {
	if cfg.PhotoIntent == "" {
		cfg.PhotoIntent = DefaultPhotoIntent
	}
	if cfg.Category == "" {
		cfg.Category = cache.DefaultCategory
	}
	if cfg.Pick == nil {
		cfg.Pick = rand.IntN
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Handler{
		config: cfg,
		images: images,
		logger: cfg.Logger.With("component", "skill"),
	}
}

// Handle processes one skill event. It only returns an error when the event
// is rejected; every other failure becomes a spoken response.
func (h *Handler) Handle(ctx context.Context, req RequestEnvelope) (*ResponseEnvelope, error) {
	start := time.Now()
	ctx = telemetry.InjectTags(ctx)
	telemetry.SetRequestType(ctx, req.Request.Type)
	telemetry.SetIntent(ctx, req.Request.IntentName())

	logger := h.logger.With(
		"request_id", req.Request.RequestID,
		"session_id", req.Session.SessionID,
	)

	resp, outcome, err := h.route(ctx, logger, req)
	duration := time.Since(start)
	telemetry.RecordSkillRequest(ctx, outcome, duration)

	tags := telemetry.GetTags(ctx)
	logger.Info("skill request",
		"request_type", tags.RequestType,
		"intent", tags.Intent,
		"cache", string(tags.CacheResult),
		"outcome", outcome,
		"duration", duration,
	)

	return resp, err
}

func (h *Handler) route(ctx context.Context, logger *slog.Logger, req RequestEnvelope) (*ResponseEnvelope, string, error) {
	if err := h.checkApplication(req.Session.Application.ApplicationID); err != nil {
		if h.config.StrictApplicationID {
			logger.Error("rejecting request", "error", err)
			return nil, outcomeRejected, err
		}
		logger.Warn("application id mismatch", "error", err)
	}

	if req.Session.New {
		logger.Info("session started")
	}

	switch req.Request.Type {
	case LaunchRequest:
		return Envelope(nil, welcome()), outcomeSuccess, nil
	case IntentRequest:
		resp, outcome := h.onIntent(ctx, logger, req.Request.IntentName())
		return Envelope(nil, resp), outcome, nil
	case SessionEndedRequest:
		logger.Info("session ended", "reason", req.Request.Reason)
		return Envelope(nil, nil), outcomeSuccess, nil
	default:
		logger.Warn("unsupported request type", "type", req.Request.Type)
		return Envelope(nil, nil), outcomeFallback, nil
	}
}

func (h *Handler) checkApplication(id string) error {
	if h.config.ApplicationID == "" || id == h.config.ApplicationID {
		return nil
	}
	return fmt.Errorf("%w: %q", catso.ErrInvalidApplication, id)
}

func (h *Handler) onIntent(ctx context.Context, logger *slog.Logger, name string) (*Response, string) {
	resp, err := h.Dispatch(ctx, name)
	if errors.Is(err, catso.ErrInvalidIntent) {
		logger.Warn("unrecognized intent", "error", err)
		return SpeechResponse(fallbackTitle, fallbackSpeech, welcomeReprompt, false), outcomeFallback
	}
	if err != nil {
		logger.Error("getting photo failed", "intent", name, "error", err)
		return SpeechResponse(photoTitle, photoError, "", true), outcomeError
	}
	return resp, outcomeSuccess
}

// Dispatch builds the response for an intent. Unrecognized intents return
// catso.ErrInvalidIntent; photo failures return the image source error.
func (h *Handler) Dispatch(ctx context.Context, intent string) (*Response, error) {
	switch intent {
	case h.config.PhotoIntent:
		return h.photo(ctx)
	case HelpIntent:
		return welcome(), nil
	case StopIntent, CancelIntent:
		return SpeechResponse(endTitle, "", "", true), nil
	default:
		return nil, fmt.Errorf("%w: %q", catso.ErrInvalidIntent, intent)
	}
}

func (h *Handler) photo(ctx context.Context) (*Response, error) {
	images, _, err := h.images.GetImages(ctx, h.config.Category)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, catso.ErrNoImageAvailable
	}

	pair := images[h.config.Pick(len(images))]
	return PhotoResponse(photoTitle, photoSpeech, photoText, pair, "", true), nil
}

func welcome() *Response {
	return SpeechResponse(welcomeTitle, welcomeSpeech, welcomeReprompt, false)
}
