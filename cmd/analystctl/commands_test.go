package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/analystai/internal/domain"
	"github.com/ashureev/analystai/internal/history"
	"github.com/ashureev/analystai/internal/store"
)

func seedConversation(t *testing.T, dbPath, userID string) string {
	t.Helper()
	repo, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	id, err := history.NewArchive(repo, nil).Save(context.Background(), userID, history.Record{
		Messages: []domain.Message{
			domain.AssistantMessage("What process are we defining?"),
			domain.UserMessage("Invoice approval"),
		},
		Documents: &domain.DocumentBundle{
			Requirements: domain.RequirementsDocument{Goal: "Faster approvals", Description: "d", Scope: "s", BusinessRules: "b", KPIs: "k"},
			Artifacts:    domain.AnalyticalArtifactSet{UseCases: "u", ProcessDiagrams: "p", UserStories: "us", LeadingIndicators: "l"},
		},
	})
	require.NoError(t, err)
	return id
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CHAT_LOG_ENABLED", "false")
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConversationsList(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	id := seedConversation(t, dbPath, "anon_1")
	seedConversation(t, dbPath, "anon_2")

	out, err := runCLI(t, "conversations", "list", "--user", "anon_1", "--db", dbPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "TITLE")
	assert.Contains(t, lines[1], id)
	assert.Contains(t, lines[1], "Invoice approval")
}

func TestConversationsShow(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	id := seedConversation(t, dbPath, "anon_1")

	out, err := runCLI(t, "conversations", "show", id, "--user", "anon_1", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "# Invoice approval")
	assert.Contains(t, out, "**User:** Invoice approval")
	assert.Contains(t, out, "### Goal\n\nFaster approvals")

	_, err = runCLI(t, "conversations", "show", id, "--user", "anon_2", "--db", dbPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPublishRequiresConfluence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	id := seedConversation(t, dbPath, "anon_1")
	t.Setenv("CONFLUENCE_BASE_URL", "")

	_, err := runCLI(t, "publish", id, "--user", "anon_1", "--db", dbPath)
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "analystctl version "+Version+"\n", out)
}
