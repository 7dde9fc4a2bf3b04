package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/healthwave/internal/application"
	"github.com/bryanwahyu/healthwave/internal/domain/ai"
	domain "github.com/bryanwahyu/healthwave/internal/domain/conversation"
	"github.com/bryanwahyu/healthwave/internal/domain/failures"
)

type memRepo struct {
	mu      sync.Mutex
	turns   []*domain.Turn
	saveErr error
}

func (m *memRepo) Save(_ context.Context, t *domain.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *t
	m.turns = append(m.turns, &cp)
	return nil
}

func (m *memRepo) History(_ context.Context, userID int64, limit int) ([]*domain.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Turn
	for _, t := range m.turns {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type scriptedClient struct {
	reply string
	err   error
	got   [][]ai.Message
}

func (c *scriptedClient) Complete(_ context.Context, msgs []ai.Message) (string, error) {
	c.got = append(c.got, msgs)
	return c.reply, c.err
}

type rawText struct{}

func (rawText) Extract(_ context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	return string(b), err
}

type extractorMap map[string]domain.Extractor

func (m extractorMap) For(ext string) (domain.Extractor, bool) {
	e, ok := m[ext]
	return e, ok
}

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newService(t *testing.T) (*Service, *memRepo, *scriptedClient, string) {
	t.Helper()
	dir := t.TempDir()
	scratch, err := application.NewScratch(dir, nil)
	require.NoError(t, err)
	repo := &memRepo{}
	client := &scriptedClient{reply: "Please see a doctor if the cough persists."}
	return &Service{
		Repo:          repo,
		Client:        client,
		Extractors:    extractorMap{".txt": rawText{}},
		Scratch:       scratch,
		Clock:         &tickingClock{now: time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)},
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		SystemPrompt:  "You are a helpful medical assistant.",
		HistoryWindow: 4,
	}, repo, client, dir
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRespondText(t *testing.T) {
	svc, repo, client, _ := newService(t)

	reply, err := svc.Respond(context.Background(), RespondCommand{UserID: 5, Message: "  I have a headache  "})
	require.NoError(t, err)

	assert.Equal(t, client.reply, reply.Content)
	require.Len(t, repo.turns, 2)
	assert.Equal(t, domain.RoleUser, repo.turns[0].Role)
	assert.Equal(t, "I have a headache", repo.turns[0].Content)
	assert.False(t, repo.turns[0].IsFile)
	assert.Equal(t, domain.RoleAssistant, repo.turns[1].Role)
	assert.Equal(t, client.reply, repo.turns[1].Content)

	require.Len(t, client.got, 1)
	assert.Equal(t, []ai.Message{
		{Role: ai.RoleSystem, Content: "You are a helpful medical assistant."},
		{Role: ai.RoleUser, Content: "I have a headache"},
	}, client.got[0])
}

func TestRespondTextAttachment(t *testing.T) {
	svc, repo, _, dir := newService(t)

	_, err := svc.Respond(context.Background(), RespondCommand{
		UserID: 5,
		File:   &domain.Attachment{Name: "notes.txt", Body: strings.NewReader("patient reports cough")},
	})
	require.NoError(t, err)

	require.Len(t, repo.turns, 2)
	assert.True(t, repo.turns[0].IsFile)
	assert.Equal(t, "patient reports cough", repo.turns[0].Content)
	assert.Equal(t, "notes.txt", repo.turns[0].FileName)
	assert.Equal(t, domain.RoleAssistant, repo.turns[1].Role)
	assertScratchEmpty(t, dir)
}

func TestRespondUnsupportedAttachment(t *testing.T) {
	svc, repo, client, dir := newService(t)

	_, err := svc.Respond(context.Background(), RespondCommand{
		UserID: 5,
		File:   &domain.Attachment{Name: "scan.xyz", Body: strings.NewReader("???")},
	})
	require.ErrorIs(t, err, failures.ErrUnsupportedFileType)
	assert.Equal(t, failures.KindUnsupportedFileType, failures.KindOf(err))
	assert.Empty(t, repo.turns)
	assert.Empty(t, client.got)
	assertScratchEmpty(t, dir)
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, string) (string, error) {
	return "", errors.New("corrupt document")
}

func TestRespondExtractionFailureCleansUp(t *testing.T) {
	svc, repo, _, dir := newService(t)
	svc.Extractors = extractorMap{".pdf": failingExtractor{}}

	_, err := svc.Respond(context.Background(), RespondCommand{
		UserID: 5,
		File:   &domain.Attachment{Name: "report.pdf", Body: strings.NewReader("%PDF-broken")},
	})
	require.ErrorIs(t, err, failures.ErrInvalidInput)
	assert.Empty(t, repo.turns)
	assertScratchEmpty(t, dir)
}

func TestRespondRejectsOverlongExtractedText(t *testing.T) {
	svc, repo, client, dir := newService(t)
	svc.MaxExtractedChars = 10

	_, err := svc.Respond(context.Background(), RespondCommand{
		UserID: 5,
		File:   &domain.Attachment{Name: "notes.txt", Body: strings.NewReader(strings.Repeat("cough ", 100))},
	})
	require.ErrorIs(t, err, failures.ErrInvalidInput)
	assert.ErrorContains(t, err, "more than 10 characters")
	assert.Empty(t, repo.turns)
	assert.Empty(t, client.got)
	assertScratchEmpty(t, dir)

	_, err = svc.Respond(context.Background(), RespondCommand{
		UserID: 5,
		File:   &domain.Attachment{Name: "short.txt", Body: strings.NewReader("dry cough")},
	})
	require.NoError(t, err)
}

func TestRespondRejectsEmptyAndAmbiguousInput(t *testing.T) {
	svc, repo, client, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Respond(ctx, RespondCommand{UserID: 5, Message: "   "})
	assert.ErrorIs(t, err, failures.ErrInvalidInput)

	_, err = svc.Respond(ctx, RespondCommand{UserID: 5, Message: "hi", File: &domain.Attachment{Name: "a.txt", Body: strings.NewReader("x")}})
	assert.ErrorIs(t, err, failures.ErrInvalidInput)

	_, err = svc.Respond(ctx, RespondCommand{Message: "hi"})
	assert.ErrorIs(t, err, failures.ErrInvalidInput)

	svc.MaxMessageChars = 3
	_, err = svc.Respond(ctx, RespondCommand{UserID: 5, Message: "hello"})
	assert.ErrorIs(t, err, failures.ErrInvalidInput)

	assert.Empty(t, repo.turns)
	assert.Empty(t, client.got)
}

func TestRespondUserTurnPersistenceFailsFast(t *testing.T) {
	svc, repo, client, _ := newService(t)
	repo.saveErr = errors.New("deadlock")

	_, err := svc.Respond(context.Background(), RespondCommand{UserID: 5, Message: "hello"})
	require.ErrorIs(t, err, failures.ErrPersistence)
	assert.Empty(t, client.got, "chat model must not be called when the user turn was not stored")
}

func TestRespondExternalServiceFailure(t *testing.T) {
	svc, repo, client, _ := newService(t)
	client.err = fmt.Errorf("status 429: %w", ai.ErrQuotaExceeded)

	_, err := svc.Respond(context.Background(), RespondCommand{UserID: 5, Message: "hello"})
	require.ErrorIs(t, err, failures.ErrExternalService)
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)

	require.Len(t, repo.turns, 1, "only the user turn is stored")
	assert.Equal(t, domain.RoleUser, repo.turns[0].Role)
}

type slowClient struct{}

func (slowClient) Complete(ctx context.Context, _ []ai.Message) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRespondHonoursTimeout(t *testing.T) {
	svc, _, _, _ := newService(t)
	svc.Client = slowClient{}
	svc.Timeout = 20 * time.Millisecond

	_, err := svc.Respond(context.Background(), RespondCommand{UserID: 5, Message: "hello"})
	require.ErrorIs(t, err, failures.ErrExternalService)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRespondReplaysBoundedHistory(t *testing.T) {
	svc, _, client, _ := newService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Respond(ctx, RespondCommand{UserID: 5, Message: fmt.Sprintf("q%d", i)})
		require.NoError(t, err)
	}
	_, err := svc.Respond(ctx, RespondCommand{UserID: 6, Message: "other user"})
	require.NoError(t, err)

	last := client.got[2]
	// system + window of 4 (q0 a, q1 a) + new question
	require.Len(t, last, 6)
	assert.Equal(t, ai.RoleSystem, last[0].Role)
	assert.Equal(t, "q0", last[1].Content)
	assert.Equal(t, ai.RoleAssistant, last[2].Role)
	assert.Equal(t, "q1", last[3].Content)
	assert.Equal(t, "q2", last[5].Content)

	assert.Len(t, client.got[3], 2, "history is per user")
}

func TestHistory(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Respond(ctx, RespondCommand{UserID: 5, Message: fmt.Sprintf("q%d", i)})
		require.NoError(t, err)
	}

	first, err := svc.History(ctx, 5, 4)
	require.NoError(t, err)
	require.Len(t, first, 4)
	for i := 1; i < len(first); i++ {
		assert.True(t, first[i-1].CreatedAt.After(first[i].CreatedAt), "newest first")
	}
	assert.Equal(t, domain.RoleAssistant, first[0].Role)
	assert.Equal(t, "q2", first[1].Content)

	again, err := svc.History(ctx, 5, 4)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	all, err := svc.History(ctx, 5, 0)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}
