// Package creative generates ad campaigns: marketing copy and an ad image,
// produced by two independent model calls.
package creative

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/retailsight/internal/application"
	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
	"github.com/bryanwahyu/retailsight/internal/domain/creative"
	"github.com/bryanwahyu/retailsight/internal/infra/ai/prompt"
)

// DefaultHistorySize bounds the campaign history.
const DefaultHistorySize = 50

// Generator is the part of the analysis service the creator needs.
type Generator interface {
	Analyze(ctx context.Context, req analysis.Request) (analysis.Response, error)
	GenerateImage(ctx context.Context, call analysis.Call) (analysis.MediaPayload, error)
}

type Service struct {
	gen   Generator
	clock application.Clock
	log   *zap.Logger
	newID func() string

	mu      sync.RWMutex
	history []creative.Campaign
	size    int
}

func NewService(gen Generator, clock application.Clock, log *zap.Logger, historySize int) *Service {
	if clock == nil {
		clock = application.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Service{gen: gen, clock: clock, log: log.Named("creative"), newID: uuid.NewString, size: historySize}
}

// Generate runs the copy call and, when requested, the image call side by
// side. A failure of one does not cancel the other; only when every
// requested part failed is an error returned.
func (s *Service) Generate(ctx context.Context, b creative.Brief) (creative.Campaign, error) {
	b.ProductName = strings.TrimSpace(b.ProductName)
	b.Audience = strings.TrimSpace(b.Audience)
	if b.ProductName == "" || b.Audience == "" {
		return creative.Campaign{}, analysis.Errorf(analysis.ErrConfiguration, "generate campaign", "product name and audience are required")
	}
	withPhoto := b.ProductImage != nil && len(b.ProductImage.Data) > 0

	var media []analysis.MediaPayload
	if withPhoto {
		media = append(media, *b.ProductImage)
	}
	req, err := analysis.NewRequest(analysis.KindCreativeGenerate, prompt.CopyBrief(b.ProductName, b.Audience, withPhoto), media...)
	if err != nil {
		return creative.Campaign{}, err
	}

	c := creative.Campaign{
		ID:            s.newID(),
		Timestamp:     s.clock.Now(),
		Product:       b.ProductName,
		Audience:      b.Audience,
		UploadedImage: withPhoto,
	}

	// plain Group: one part failing must not cancel the other
	var (
		g                 errgroup.Group
		copyErr, imageErr error
	)
	g.Go(func() error {
		resp, err := s.gen.Analyze(ctx, req)
		if err != nil {
			copyErr = err
			return err
		}
		c.Copy = resp.Text
		c.HasCopy = true
		return nil
	})
	if b.IncludeImage {
		g.Go(func() error {
			parts := []analysis.Part{}
			if withPhoto {
				parts = append(parts, analysis.MediaPart(*b.ProductImage))
			}
			parts = append(parts, analysis.TextPart(prompt.ImagePrompt(b.ProductName, b.Audience, withPhoto)))
			img, err := s.gen.GenerateImage(ctx, analysis.Call{Kind: analysis.KindCreativeGenerate, Parts: parts})
			if err != nil {
				imageErr = err
				return err
			}
			c.Image = &img
			c.ImageURL = img.DataURL()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if copyErr != nil {
			c.CopyErr = copyErr.Error()
			s.log.Warn("campaign copy failed", zap.String("product", b.ProductName), zap.Error(copyErr))
		}
		if imageErr != nil {
			c.ImageErr = imageErr.Error()
			s.log.Warn("campaign image failed", zap.String("product", b.ProductName), zap.Error(imageErr))
		}
		if !c.HasCopy && c.Image == nil {
			return c, errors.Join(copyErr, imageErr)
		}
	}

	s.append(c)
	s.log.Info("campaign generated",
		zap.String("id", c.ID),
		zap.Bool("copy", c.HasCopy),
		zap.Bool("image", c.Image != nil),
		zap.Bool("complete", c.Complete(b.IncludeImage)))
	return c, nil
}

func (s *Service) append(c creative.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]creative.Campaign{c}, s.history...)
	if len(s.history) > s.size {
		s.history = s.history[:s.size]
	}
}

// History returns past campaigns, newest first.
func (s *Service) History() []creative.Campaign {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]creative.Campaign(nil), s.history...)
}
