package synthesis

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/analystai/internal/domain"
)

var longTranscript = "AnalystAI: What is the goal?\nUser: " + strings.Repeat("faster loans ", 5)

type fakeGenerator struct {
	calls          atomic.Int32
	reqErr, artErr error
	// started is closed when both generations are running.
	started chan struct{}
	running atomic.Int32
	// artBlocksUntilCancel makes artifacts wait for context cancellation.
	artBlocksUntilCancel bool
	artCanceled          atomic.Bool
}

func (f *fakeGenerator) enter() {
	f.calls.Add(1)
	if f.started != nil && f.running.Add(1) == 2 {
		close(f.started)
	}
}

func (f *fakeGenerator) GenerateRequirements(ctx context.Context, _ string) (domain.RequirementsDocument, error) {
	f.enter()
	if f.started != nil {
		select {
		case <-f.started:
		case <-ctx.Done():
			return domain.RequirementsDocument{}, ctx.Err()
		}
	}
	if f.reqErr != nil {
		return domain.RequirementsDocument{}, f.reqErr
	}
	return domain.RequirementsDocument{Goal: "G", Description: "D", Scope: "S", BusinessRules: "B", KPIs: "K"}, nil
}

func (f *fakeGenerator) GenerateArtifacts(ctx context.Context, _ string) (domain.AnalyticalArtifactSet, error) {
	f.enter()
	if f.artBlocksUntilCancel {
		<-ctx.Done()
		f.artCanceled.Store(true)
		return domain.AnalyticalArtifactSet{}, ctx.Err()
	}
	if f.started != nil {
		select {
		case <-f.started:
		case <-ctx.Done():
			return domain.AnalyticalArtifactSet{}, ctx.Err()
		}
	}
	if f.artErr != nil {
		return domain.AnalyticalArtifactSet{}, f.artErr
	}
	return domain.AnalyticalArtifactSet{UseCases: "U", ProcessDiagrams: "P", UserStories: "S", LeadingIndicators: "L"}, nil
}

func TestSynthesize_ShortTranscript(t *testing.T) {
	gen := &fakeGenerator{}
	o := NewOrchestrator(gen, nil)

	_, err := o.Synthesize(context.Background(), strings.Repeat("x", MinTranscriptLength-1))
	require.Error(t, err)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "conversationText", verr.Field)
	assert.Equal(t, "The conversation is too short to generate a document.", verr.Message)
	assert.Zero(t, gen.calls.Load())
}

func TestSynthesize_RunsConcurrently(t *testing.T) {
	// Each generation waits for the other to start, so a sequential run would deadlock.
	gen := &fakeGenerator{started: make(chan struct{})}
	o := NewOrchestrator(gen, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bundle, err := o.Synthesize(ctx, longTranscript)
	require.NoError(t, err)
	require.NoError(t, bundle.Validate())
	assert.Equal(t, "G", bundle.Requirements.Goal)
	assert.Equal(t, "L", bundle.Artifacts.LeadingIndicators)
	assert.Equal(t, int32(2), gen.calls.Load())
}

func TestSynthesize_FailureCancelsSibling(t *testing.T) {
	genErr := &domain.GenerationError{Op: "requirements_document", Err: errors.New("boom")}
	gen := &fakeGenerator{reqErr: genErr, artBlocksUntilCancel: true}
	o := NewOrchestrator(gen, nil)

	bundle, err := o.Synthesize(context.Background(), longTranscript)
	require.Error(t, err)
	assert.Nil(t, bundle)
	assert.ErrorIs(t, err, genErr)
	assert.True(t, gen.artCanceled.Load())
}

func TestSynthesize_ArtifactsFailure(t *testing.T) {
	gen := &fakeGenerator{artErr: errors.New("bad output")}
	o := NewOrchestrator(gen, nil)

	bundle, err := o.Synthesize(context.Background(), longTranscript)
	require.Error(t, err)
	assert.Nil(t, bundle)
}
