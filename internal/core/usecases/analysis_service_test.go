package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/usecases"
)

func TestAnalysisService_ArchiveFillsIdentity(t *testing.T) {
	var stored *domain.Analysis
	repo := &mockAnalysisRepo{insertFn: func(ctx context.Context, a *domain.Analysis) error {
		stored = a
		return nil
	}}
	svc := usecases.NewAnalysisService(repo, nil, nil)

	require.NoError(t, svc.Archive(context.Background(), &domain.Analysis{Kind: domain.AnalysisChat, Prompt: "p", Response: "r"}))
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestAnalysisService_ArchiveRejectsUnknownKind(t *testing.T) {
	svc := usecases.NewAnalysisService(&mockAnalysisRepo{}, nil, nil)
	err := svc.Archive(context.Background(), &domain.Analysis{Kind: "essay"})
	assert.True(t, domain.IsValidation(err))
}

func TestAnalysisService_ArchiveWrapsRepoError(t *testing.T) {
	boom := errors.New("connection refused")
	repo := &mockAnalysisRepo{insertFn: func(context.Context, *domain.Analysis) error { return boom }}
	svc := usecases.NewAnalysisService(repo, nil, nil)

	err := svc.Archive(context.Background(), &domain.Analysis{Kind: domain.AnalysisPrediction})
	assert.ErrorIs(t, err, boom)
}

func TestAnalysisService_ListClampsLimit(t *testing.T) {
	repo := &mockAnalysisRepo{listFn: func(ctx context.Context, offset, limit int) ([]domain.Analysis, error) {
		assert.Equal(t, 0, offset)
		assert.Equal(t, 20, limit)
		return nil, nil
	}}
	svc := usecases.NewAnalysisService(repo, nil, nil)
	_, err := svc.List(context.Background(), -5, 1000)
	require.NoError(t, err)
}

func TestAnalysisService_WithoutArchive(t *testing.T) {
	svc := usecases.NewAnalysisService(nil, rainfallRepo(), func() int { return 3 })

	_, err := svc.List(context.Background(), 0, 10)
	assert.ErrorIs(t, err, domain.ErrArchiveUnavailable)

	ov, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ov.ActiveSessions)
	assert.Equal(t, 2, ov.Layers)
	assert.Empty(t, ov.Recent)
}

func TestAnalysisService_Overview(t *testing.T) {
	repo := &mockAnalysisRepo{
		countFn: func(context.Context) (map[domain.AnalysisKind]int, error) {
			return map[domain.AnalysisKind]int{domain.AnalysisChat: 4, domain.AnalysisPrediction: 7}, nil
		},
		listFn: func(ctx context.Context, offset, limit int) ([]domain.Analysis, error) {
			assert.Equal(t, 5, limit)
			return []domain.Analysis{{ID: "a1", Kind: domain.AnalysisPrediction}}, nil
		},
	}
	svc := usecases.NewAnalysisService(repo, nil, nil)

	ov, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, ov.Chats)
	assert.Equal(t, 7, ov.Predictions)
	require.Len(t, ov.Recent, 1)
	assert.Equal(t, "a1", ov.Recent[0].ID)
}

func TestAnalysisService_Count(t *testing.T) {
	repo := &mockAnalysisRepo{countFn: func(context.Context) (map[domain.AnalysisKind]int, error) {
		return map[domain.AnalysisKind]int{domain.AnalysisChat: 2, domain.AnalysisPrediction: 3}, nil
	}}
	n, err := usecases.NewAnalysisService(repo, nil, nil).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = usecases.NewAnalysisService(nil, nil, nil).Count(context.Background())
	assert.ErrorIs(t, err, domain.ErrArchiveUnavailable)
}
