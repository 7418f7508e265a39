package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"tensionmonitor/internal/domain"
	"tensionmonitor/internal/ports"
)

// fakeRepo implements ports.EventRepository in memory. DuplicateURLs makes
// InsertEvent report a lost uniqueness race; FailURLs makes it fail outright.
type fakeRepo struct {
	mu            sync.Mutex
	Existing      map[string]bool
	DuplicateURLs map[string]bool
	FailURLs      map[string]bool
	Events        []domain.NewsEvent
	Samples       []domain.TensionSample
	Latest        domain.TensionSample
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		Existing:      map[string]bool{},
		DuplicateURLs: map[string]bool{},
		FailURLs:      map[string]bool{},
		Latest:        domain.TensionSample{Value: 50},
	}
}

func (r *fakeRepo) EventExists(_ context.Context, url string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Existing[url], nil
}

func (r *fakeRepo) InsertEvent(_ context.Context, event domain.NewsEvent) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.DuplicateURLs[event.Article.URL] {
		return 0, ports.ErrDuplicateEvent
	}
	if r.FailURLs[event.Article.URL] {
		return 0, fmt.Errorf("connection reset")
	}
	r.Events = append(r.Events, event)
	return int64(len(r.Events)), nil
}

func (r *fakeRepo) InsertTensionSample(_ context.Context, sample domain.TensionSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Samples = append(r.Samples, sample)
	return nil
}

func (r *fakeRepo) LatestTensionSample(context.Context) (domain.TensionSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Latest, nil
}

func (r *fakeRepo) InsertAlert(_ context.Context, alert domain.Alert) (int64, error) {
	return 1, nil
}

func (r *fakeRepo) SetAlertNotifiedCount(context.Context, int64, int) error { return nil }

func (r *fakeRepo) ListEligibleSubscribers(context.Context) ([]domain.Subscriber, error) {
	return nil, nil
}

type fakeSource struct {
	batch []domain.Article
	calls atomic.Int32
}

func (s *fakeSource) FetchLatest(context.Context) []domain.Article {
	s.calls.Add(1)
	return s.batch
}

type blockingSource struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	once    sync.Once
}

// FetchLatest blocks the first caller until release is closed; later calls
// return immediately.
func (s *blockingSource) FetchLatest(context.Context) []domain.Article {
	s.calls.Add(1)
	s.once.Do(func() {
		close(s.started)
		<-s.release
	})
	return nil
}

type fakeClassifier struct {
	result domain.Classification
	err    error
}

func (c *fakeClassifier) Classify(context.Context, string, string) (domain.Classification, error) {
	return c.result, c.err
}

type fakeTranslator struct {
	titles map[string]string
	err    error
}

func (t *fakeTranslator) TranslateTitle(context.Context, string) (map[string]string, error) {
	return t.titles, t.err
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []domain.NewsEvent
}

func (d *fakeDispatcher) Dispatch(_ context.Context, event domain.NewsEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func newCycle(source *fakeSource, repo *fakeRepo, classifier *fakeClassifier,
	translator *fakeTranslator, dispatcher *fakeDispatcher) *Cycle {
	return NewCycle(CycleDeps{
		Source:     source,
		Repository: repo,
		Classifier: classifier,
		Translator: translator,
		Dispatcher: dispatcher,
	})
}

func neutralClassifier() *fakeClassifier {
	return &fakeClassifier{result: domain.Classification{
		Category:    domain.CategoryDiplomatic,
		ImpactScore: 5,
	}}
}

func someTranslator() *fakeTranslator {
	return &fakeTranslator{titles: map[string]string{"pt": "p", "es": "s", "ar": "a", "fa": "f"}}
}

func article(url, title string) domain.Article {
	return domain.Article{URL: url, Title: title, Source: "test", PublishedAt: time.Now()}
}

func TestRunSkipsAlreadyStoredURLs(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.Existing["https://a.example/old"] = true

	source := &fakeSource{batch: []domain.Article{article("https://a.example/old", "old news")}}
	cycle := newCycle(source, repo, neutralClassifier(), someTranslator(), &fakeDispatcher{})

	require.NoError(t, cycle.Run(context.Background()))
	assert.Empty(t, repo.Events, "already stored URL produces zero new events")
}

func TestRunSingleFlight(t *testing.T) {
	t.Parallel()

	source := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	repo := newFakeRepo()
	cycle := NewCycle(CycleDeps{
		Source:     source,
		Repository: repo,
		Classifier: neutralClassifier(),
		Translator: someTranslator(),
		Dispatcher: &fakeDispatcher{},
	})

	done := make(chan struct{})
	go func() {
		_ = cycle.Run(context.Background())
		close(done)
	}()
	<-source.started

	// Second trigger while the first is mid-fetch must be dropped outright.
	require.NoError(t, cycle.Run(context.Background()))
	assert.Equal(t, int32(1), source.calls.Load(), "dropped trigger performs zero fetches")
	assert.Empty(t, repo.Samples, "dropped trigger persists nothing")

	close(source.release)
	<-done

	// Guard released; the next trigger runs again.
	_ = cycle.Run(context.Background())
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestRunPersistsFallbackOnClassifierFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	source := &fakeSource{batch: []domain.Article{article("https://a.example/1", "garbled story")}}
	classifier := &fakeClassifier{err: fmt.Errorf("model returned prose")}
	cycle := newCycle(source, repo, classifier, someTranslator(), &fakeDispatcher{})

	require.NoError(t, cycle.Run(context.Background()))

	require.Len(t, repo.Events, 1)
	got := repo.Events[0].Classification
	assert.Equal(t, domain.CategoryOther, got.Category)
	assert.Equal(t, 3.0, got.ImpactScore)
	assert.False(t, got.IsCritical)
	assert.Empty(t, got.Keywords)
}

func TestRunTreatsDuplicateInsertAsSkip(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.DuplicateURLs["https://a.example/race"] = true

	source := &fakeSource{batch: []domain.Article{article("https://a.example/race", "raced story")}}
	dispatcher := &fakeDispatcher{}
	cycle := newCycle(source, repo, neutralClassifier(), someTranslator(), dispatcher)

	require.NoError(t, cycle.Run(context.Background()))

	assert.Empty(t, repo.Events)
	assert.Empty(t, dispatcher.events)
	require.Len(t, repo.Samples, 1, "the cycle still closes with a tension sample")
	assert.Contains(t, repo.Samples[0].Notes, "0 new events")
}

func TestRunContinuesPastInsertFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.FailURLs["https://a.example/bad"] = true

	source := &fakeSource{batch: []domain.Article{
		article("https://a.example/bad", "will not persist"),
		article("https://a.example/good", "persists fine"),
	}}
	cycle := newCycle(source, repo, neutralClassifier(), someTranslator(), &fakeDispatcher{})

	require.NoError(t, cycle.Run(context.Background()))

	require.Len(t, repo.Events, 1, "one bad article never aborts the cycle")
	assert.Equal(t, "https://a.example/good", repo.Events[0].Article.URL)
}

func TestRunSpacesArticlesAcrossFailures(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.FailURLs["https://a.example/mid"] = true

	source := &fakeSource{batch: []domain.Article{
		article("https://a.example/first", "opening story"),
		article("https://a.example/mid", "will not persist"),
		article("https://a.example/last", "closing story"),
	}}
	cycle := newCycle(source, repo, neutralClassifier(), someTranslator(), &fakeDispatcher{})
	cycle.limiter = rate.NewLimiter(rate.Every(40*time.Millisecond), 1)

	started := time.Now()
	require.NoError(t, cycle.Run(context.Background()))

	// Three articles consume three tokens; the failed insert in the middle
	// must not collapse the interval before the third one.
	assert.GreaterOrEqual(t, time.Since(started), 80*time.Millisecond)
	require.Len(t, repo.Events, 2)
}

func TestRunQueuesAlerts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		classification domain.Classification
		title          string
		wantAlert      bool
	}{
		{
			name:           "high impact score",
			classification: domain.Classification{Category: domain.CategoryMilitary, ImpactScore: 8},
			title:          "routine statement",
			wantAlert:      true,
		},
		{
			name:           "gateway critical flag",
			classification: domain.Classification{Category: domain.CategoryCyber, ImpactScore: 4, IsCritical: true},
			title:          "grid outage",
			wantAlert:      true,
		},
		{
			name:           "keyword in title",
			classification: domain.Classification{Category: domain.CategoryOther, ImpactScore: 2},
			title:          "nuclear site inspection blocked",
			wantAlert:      true,
		},
		{
			name:           "calm event",
			classification: domain.Classification{Category: domain.CategoryDiplomatic, ImpactScore: 5},
			title:          "summit scheduled",
			wantAlert:      false,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo := newFakeRepo()
			source := &fakeSource{batch: []domain.Article{article("https://a.example/x", tc.title)}}
			dispatcher := &fakeDispatcher{}
			cycle := newCycle(source, repo, &fakeClassifier{result: tc.classification}, someTranslator(), dispatcher)

			require.NoError(t, cycle.Run(context.Background()))

			if tc.wantAlert {
				assert.Len(t, dispatcher.events, 1)
			} else {
				assert.Empty(t, dispatcher.events)
			}
		})
	}
}

func TestRunAccumulatesTension(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.Latest = domain.TensionSample{Value: 60}

	source := &fakeSource{batch: []domain.Article{article("https://a.example/1", "tanks advance on capital")}}
	classifier := &fakeClassifier{result: domain.Classification{
		Category:    domain.CategoryMilitary,
		ImpactScore: 10,
	}}
	cycle := newCycle(source, repo, classifier, someTranslator(), &fakeDispatcher{})

	require.NoError(t, cycle.Run(context.Background()))

	// delta = 8 * 1.5 = 12; apply: 72 + (60-72)*0.02 = 71.76
	require.Len(t, repo.Events, 1)
	assert.Equal(t, 12.0, repo.Events[0].TensionDelta)
	require.Len(t, repo.Samples, 1)
	assert.Equal(t, 71.76, repo.Samples[0].Value)
	assert.Contains(t, repo.Samples[0].Notes, "1 articles")
}

func TestRunFallsBackToOriginalTitles(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	source := &fakeSource{batch: []domain.Article{article("https://a.example/1", "untranslatable")}}
	translator := &fakeTranslator{err: fmt.Errorf("gateway down")}
	cycle := newCycle(source, repo, neutralClassifier(), translator, &fakeDispatcher{})

	require.NoError(t, cycle.Run(context.Background()))

	require.Len(t, repo.Events, 1)
	titles := repo.Events[0].Titles
	for _, lang := range []string{"pt", "es", "ar", "fa"} {
		assert.Equal(t, "untranslatable", titles[lang])
	}
}

func TestRunSkipsEmptyBatch(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	source := &fakeSource{}
	cycle := newCycle(source, repo, neutralClassifier(), someTranslator(), &fakeDispatcher{})

	require.NoError(t, cycle.Run(context.Background()))
	assert.Empty(t, repo.Samples, "empty fetch skips all downstream steps")
}
