// Package synthesis turns a conversation transcript into a complete document bundle.
package synthesis

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/ashureev/analystai/internal/domain"
)

// MinTranscriptLength is the minimum rune count of a transcript accepted for synthesis.
const MinTranscriptLength = 50

// Generator produces the two halves of a bundle.
type Generator interface {
	GenerateRequirements(ctx context.Context, interactionText string) (domain.RequirementsDocument, error)
	GenerateArtifacts(ctx context.Context, userInput string) (domain.AnalyticalArtifactSet, error)
}

// Orchestrator runs both generations concurrently and merges the results.
type Orchestrator struct {
	gen    Generator
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator over gen.
func NewOrchestrator(gen Generator, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{gen: gen, logger: logger}
}

// Synthesize validates transcript and generates the bundle. The first failing generation
// cancels the other and its error is returned; no partial bundle is produced.
func (o *Orchestrator) Synthesize(ctx context.Context, transcript string) (*domain.DocumentBundle, error) {
	if utf8.RuneCountInString(transcript) < MinTranscriptLength {
		return nil, domain.NewValidationError("conversationText", "The conversation is too short to generate a document.")
	}

	started := time.Now()
	var (
		requirements domain.RequirementsDocument
		artifacts    domain.AnalyticalArtifactSet
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		requirements, err = o.gen.GenerateRequirements(gctx, transcript)
		return err
	})
	g.Go(func() error {
		var err error
		artifacts, err = o.gen.GenerateArtifacts(gctx, transcript)
		return err
	})
	if err := g.Wait(); err != nil {
		o.logger.Warn("Document synthesis failed", "duration", time.Since(started), "error", err)
		return nil, err
	}

	o.logger.Info("Document synthesis completed",
		"transcript_length", utf8.RuneCountInString(transcript),
		"duration", time.Since(started))
	return &domain.DocumentBundle{Requirements: requirements, Artifacts: artifacts}, nil
}
