package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/digkill/petdance/internal/models"
	"github.com/digkill/petdance/internal/videogen"
)

type VideoGenerator interface {
	Configured() bool
	Generate(ctx context.Context, req videogen.Request) (*videogen.Result, error)
}

type PromptEnhancer interface {
	Enhance(ctx context.Context, styleLabel, basePrompt, hint string) (string, error)
}

type PhotoUploader interface {
	Upload(ctx context.Context, ownerID string, data []byte, contentType string) (string, error)
}

type videoStore interface {
	Create(ctx context.Context, video *models.Video) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Video, error)
}

type generationLog interface {
	Log(ctx context.Context, entry models.GenerationLog) error
}

type GenerationService struct {
	log         *slog.Logger
	credits     *CreditService
	videos      videoStore
	generations generationLog
	generator   VideoGenerator
	enhancer    PromptEnhancer
	uploader    PhotoUploader
	duration    int
	aspectRatio string
}

type GenerationOptions struct {
	Duration    int
	AspectRatio string
}

// GenerationRequest carries either raw photo bytes or a public image URL.
type GenerationRequest struct {
	Style       string
	Hint        string
	ImageURL    string
	Image       []byte
	ContentType string
}

type GenerationResult struct {
	Video   *models.Video
	Prompt  string
	Balance int
}

// NewGenerationService wires the generation flow. enhancer and uploader may be
// nil when their providers are not configured.
func NewGenerationService(log *slog.Logger, credits *CreditService, videos videoStore, generations generationLog, generator VideoGenerator, enhancer PromptEnhancer, uploader PhotoUploader, opts GenerationOptions) *GenerationService {
	if log == nil {
		log = slog.Default()
	}
	return &GenerationService{
		log:         log,
		credits:     credits,
		videos:      videos,
		generations: generations,
		generator:   generator,
		enhancer:    enhancer,
		uploader:    uploader,
		duration:    opts.Duration,
		aspectRatio: opts.AspectRatio,
	}
}

// Generate turns a pet photo into a dance video. Credits are checked up front
// and debited only once the provider has returned a video.
func (s *GenerationService) Generate(ctx context.Context, userID string, req GenerationRequest) (*GenerationResult, error) {
	style, ok := models.LookupDanceStyle(req.Style)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStyle, req.Style)
	}
	if s.generator == nil || !s.generator.Configured() {
		return nil, VideoNotConfigured()
	}

	imageURL, err := validateImage(req, s.uploader != nil)
	if err != nil {
		return nil, err
	}

	balance, err := s.credits.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance < s.credits.Cost() {
		return nil, ErrCreditsRequired
	}

	if len(req.Image) > 0 {
		imageURL, err = s.uploader.Upload(ctx, userID, req.Image, req.ContentType)
		if err != nil {
			return nil, fmt.Errorf("upload photo: %w", err)
		}
	}

	prompt := s.buildPrompt(ctx, style, req.Hint)

	result, err := s.generator.Generate(ctx, videogen.Request{
		ImageURL:    imageURL,
		Prompt:      prompt,
		Duration:    s.duration,
		AspectRatio: s.aspectRatio,
	})
	if err != nil {
		s.logOutcome(ctx, userID, style.ID, taskIDFrom(err), stateFromError(err), err.Error())
		return nil, err
	}

	if err := s.credits.Spend(ctx, userID, "task:"+result.TaskID); err != nil {
		s.logOutcome(ctx, userID, style.ID, result.TaskID, models.JobStateCompleted, "credit spend failed: "+err.Error())
		return nil, err
	}

	video := &models.Video{
		UserID:       userID,
		DanceStyle:   style.Label,
		VideoURL:     result.VideoURL,
		ThumbnailURL: imageURL,
		TaskID:       result.TaskID,
	}
	if err := s.videos.Create(ctx, video); err != nil {
		// The credit is already spent; the user still gets the URL back.
		s.log.Error("failed to save video", "err", err, "user_id", userID, "task_id", result.TaskID)
	}
	s.logOutcome(ctx, userID, style.ID, result.TaskID, models.JobStateCompleted, "")

	remaining, err := s.credits.Balance(ctx, userID)
	if err != nil {
		s.log.Warn("failed to read balance after spend", "err", err, "user_id", userID)
		remaining = balance - s.credits.Cost()
	}

	return &GenerationResult{Video: video, Prompt: prompt, Balance: remaining}, nil
}

func (s *GenerationService) Videos(ctx context.Context, userID string, limit int) ([]models.Video, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	videos, err := s.videos.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

// validateImage checks the photo input without side effects. For uploads the
// returned URL is empty until the bytes are stored.
func validateImage(req GenerationRequest, canUpload bool) (string, error) {
	if len(req.Image) > 0 {
		if !canUpload {
			return "", storageNotConfigured()
		}
		if !strings.HasPrefix(req.ContentType, "image/") {
			return "", fmt.Errorf("%w: file must be an image", ErrInvalidInput)
		}
		return "", nil
	}

	raw := strings.TrimSpace(req.ImageURL)
	if raw == "" {
		return "", fmt.Errorf("%w: a photo is required", ErrInvalidInput)
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("%w: image_url must be an absolute http(s) url", ErrInvalidInput)
	}
	return parsed.String(), nil
}

func (s *GenerationService) buildPrompt(ctx context.Context, style models.DanceStyle, hint string) string {
	base := style.BasePrompt
	if s.enhancer == nil {
		return withHint(base, hint)
	}
	enhanced, err := s.enhancer.Enhance(ctx, style.Label, base, hint)
	if err != nil || enhanced == "" {
		s.log.Warn("prompt enhancement failed, using base prompt", "err", err, "style", style.ID)
		return withHint(base, hint)
	}
	return enhanced
}

func withHint(base, hint string) string {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return base
	}
	return base + ", " + hint
}

func (s *GenerationService) logOutcome(ctx context.Context, userID, style, taskID string, state models.JobState, message string) {
	entry := models.GenerationLog{
		UserID:     userID,
		DanceStyle: style,
		TaskID:     taskID,
		State:      state,
		Error:      message,
	}
	if err := s.generations.Log(ctx, entry); err != nil {
		s.log.Error("failed to log generation", "err", err, "task_id", taskID)
	}
}

func stateFromError(err error) models.JobState {
	if errors.Is(err, videogen.ErrJobTimedOut) {
		return models.JobStateTimedOut
	}
	return models.JobStateFailed
}

func taskIDFrom(err error) string {
	var jobErr *videogen.JobError
	if errors.As(err, &jobErr) {
		return jobErr.TaskID
	}
	return ""
}
