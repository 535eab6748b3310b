package destinations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/pkg/aggregation"
	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
)

type fakeSubmissionSource struct {
	submissions []models.Submission
	processed   map[string]bool
}

func (f *fakeSubmissionSource) FindSubmissions(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	var out []models.Submission
	for _, sub := range f.submissions {
		if filter.Location != nil && sub.Location != *filter.Location {
			continue
		}
		if filter.Status != nil && sub.Status != *filter.Status {
			continue
		}
		if filter.Processed != nil && f.processed[sub.ID] != *filter.Processed {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (f *fakeSubmissionSource) MarkProcessed(ctx context.Context, ids []string) error {
	if f.processed == nil {
		f.processed = map[string]bool{}
	}
	for _, id := range ids {
		f.processed[id] = true
	}
	return nil
}

type fakeDestinationStore struct {
	byID        map[string]*models.Destination
	nextID      int
	listResult  []models.Destination
	searchHits  []models.Destination
	searchTerms []string
}

func newFakeDestinationStore() *fakeDestinationStore {
	return &fakeDestinationStore{byID: map[string]*models.Destination{}}
}

func (f *fakeDestinationStore) GetByID(ctx context.Context, id string) (*models.Destination, error) {
	dest, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("destination %s not found", id)
	}
	copied := *dest
	return &copied, nil
}

func (f *fakeDestinationStore) GetByCityCountry(ctx context.Context, city, country string) (*models.Destination, error) {
	for _, dest := range f.byID {
		if dest.City == city && dest.Country == country {
			copied := *dest
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeDestinationStore) Upsert(ctx context.Context, city, country string, snapshot json.RawMessage, submissionCount int) (*models.Destination, error) {
	now := time.Now().UTC()
	for _, dest := range f.byID {
		if dest.City == city && dest.Country == country {
			dest.AggregatedData = snapshot
			dest.SubmissionCount = submissionCount
			dest.LastDataUpdate = &now
			dest.UpdatedAt = now
			copied := *dest
			return &copied, nil
		}
	}
	f.nextID++
	dest := &models.Destination{
		ID:              fmt.Sprintf("dest-%d", f.nextID),
		City:            city,
		Country:         country,
		Status:          models.DestinationStatusDraft,
		AggregatedData:  snapshot,
		SubmissionCount: submissionCount,
		LastDataUpdate:  &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	f.byID[dest.ID] = dest
	copied := *dest
	return &copied, nil
}

func (f *fakeDestinationStore) UpdateSnapshot(ctx context.Context, id string, snapshot json.RawMessage, submissionCount int) error {
	dest, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("destination %s not found", id)
	}
	now := time.Now().UTC()
	dest.AggregatedData = snapshot
	dest.SubmissionCount = submissionCount
	dest.LastDataUpdate = &now
	dest.UpdatedAt = now
	return nil
}

func (f *fakeDestinationStore) UpdateOverrides(ctx context.Context, id string, overrides json.RawMessage) error {
	dest, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("destination %s not found", id)
	}
	dest.AdminOverrides = overrides
	return nil
}

func (f *fakeDestinationStore) SetStatus(ctx context.Context, id string, status models.DestinationStatus) error {
	dest, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("destination %s not found", id)
	}
	dest.Status = status
	return nil
}

func (f *fakeDestinationStore) SetFeatured(ctx context.Context, id string, featured bool) error {
	dest, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("destination %s not found", id)
	}
	dest.Featured = featured
	return nil
}

func (f *fakeDestinationStore) List(ctx context.Context, req models.DestinationListRequest) ([]models.Destination, int, error) {
	return f.listResult, len(f.listResult), nil
}

func (f *fakeDestinationStore) SearchCandidates(ctx context.Context, terms []string, limit int) ([]models.Destination, error) {
	f.searchTerms = terms
	return f.searchHits, nil
}

type fakeLinkStore struct {
	links map[string]models.DestinationSubmissionLink
}

func newFakeLinkStore() *fakeLinkStore {
	return &fakeLinkStore{links: map[string]models.DestinationSubmissionLink{}}
}

func linkKey(destinationID, submissionID string) string {
	return destinationID + "|" + submissionID
}

func (f *fakeLinkStore) CreateIgnoreDuplicates(ctx context.Context, links []models.DestinationSubmissionLink) error {
	for _, link := range links {
		key := linkKey(link.DestinationID, link.SubmissionID)
		if _, exists := f.links[key]; exists {
			continue
		}
		f.links[key] = link
	}
	return nil
}

func (f *fakeLinkStore) UpsertWeights(ctx context.Context, links []models.DestinationSubmissionLink) error {
	for _, link := range links {
		f.links[linkKey(link.DestinationID, link.SubmissionID)] = link
	}
	return nil
}

func (f *fakeLinkStore) DeleteByDestination(ctx context.Context, destinationID string) error {
	for key, link := range f.links {
		if link.DestinationID == destinationID {
			delete(f.links, key)
		}
	}
	return nil
}

func (f *fakeLinkStore) ListByDestination(ctx context.Context, destinationID string) ([]models.DestinationSubmissionLink, error) {
	var out []models.DestinationSubmissionLink
	for _, link := range f.links {
		if link.DestinationID == destinationID {
			out = append(out, link)
		}
	}
	return out, nil
}

type fakeQueue struct {
	enqueued []string
}

func (f *fakeQueue) EnqueueRefresh(ctx context.Context, destinationID, reason string) error {
	f.enqueued = append(f.enqueued, destinationID)
	return nil
}

type fakeEmitter struct {
	created []string
	updated []string
}

func (f *fakeEmitter) EmitDestinationCreated(ctx context.Context, dest *models.Destination) error {
	f.created = append(f.created, dest.ID)
	return nil
}

func (f *fakeEmitter) EmitDestinationUpdated(ctx context.Context, dest *models.Destination) error {
	f.updated = append(f.updated, dest.ID)
	return nil
}

type fakeTx struct {
	database.Tx
}

func (f *fakeTx) Commit(ctx context.Context) error   { return nil }
func (f *fakeTx) Rollback(ctx context.Context) error { return nil }
func (f *fakeTx) IsOpen() bool                       { return true }

type fakeDB struct {
	database.DB
}

func (f *fakeDB) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error) {
	return ctx, &fakeTx{}, nil
}

type serviceFixture struct {
	service *Service
	source  *fakeSubmissionSource
	dests   *fakeDestinationStore
	links   *fakeLinkStore
	queue   *fakeQueue
	emitter *fakeEmitter
}

func newServiceFixture(t *testing.T, submissions []models.Submission) *serviceFixture {
	t.Helper()

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	source := &fakeSubmissionSource{submissions: submissions, processed: map[string]bool{}}
	dests := newFakeDestinationStore()
	links := newFakeLinkStore()
	queue := &fakeQueue{}
	emitter := &fakeEmitter{}

	engine := aggregation.NewEngine(logger, source, 5, 0)
	service := NewService(logger, &fakeDB{}, engine, dests, links, queue, emitter, 24*time.Hour)

	return &serviceFixture{
		service: service,
		source:  source,
		dests:   dests,
		links:   links,
		queue:   queue,
		emitter: emitter,
	}
}

func submissionFixture(id string, subType models.SubmissionType, location string, data map[string]any, createdAt time.Time) models.Submission {
	raw, _ := json.Marshal(data)
	return models.Submission{
		ID:        id,
		Type:      subType,
		Status:    models.SubmissionStatusApproved,
		Location:  location,
		Data:      raw,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func pragueSubmissions(now time.Time) []models.Submission {
	return []models.Submission{
		submissionFixture("sub-1", models.SubmissionTypeAccommodation, "Prague, Czech Republic", map[string]any{
			"accommodationType": "dorm",
			"monthlyRentCents":  45000.0,
			"rating":            4.0,
		}, now.AddDate(0, -1, 0)),
		submissionFixture("sub-2", models.SubmissionTypeLivingExpenses, "Prague, Czech Republic", map[string]any{
			"totalMonthlyBudget": 800.0,
			"food":               250.0,
		}, now.AddDate(0, -2, 0)),
		submissionFixture("sub-3", models.SubmissionTypeExperience, "Prague, Czech Republic", map[string]any{
			"overallRating": 5.0,
			"title":         "Best semester of my life",
			"nationality":   "German",
		}, now.AddDate(0, 0, -10)),
	}
}

func TestCreateFromSubmissions(t *testing.T) {
	now := time.Now().UTC()
	fx := newServiceFixture(t, pragueSubmissions(now))

	dest, err := fx.service.CreateFromSubmissions(context.Background(), "Prague", "Czech Republic", nil)
	require.NoError(t, err)
	require.NotNil(t, dest)

	assert.Equal(t, "Prague", dest.City)
	assert.Equal(t, "Czech Republic", dest.Country)
	assert.Equal(t, 3, dest.SubmissionCount)

	snapshot := dest.Snapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, 3, snapshot.TotalSubmissions)
	require.NotNil(t, snapshot.AverageRating)
	assert.InDelta(t, 5.0, *snapshot.AverageRating, 0.001)
	require.NotNil(t, snapshot.AverageCost)
	assert.InDelta(t, 800.0, *snapshot.AverageCost, 0.001)

	links, err := fx.links.ListByDestination(context.Background(), dest.ID)
	require.NoError(t, err)
	assert.Len(t, links, 3)
	for _, link := range links {
		assert.GreaterOrEqual(t, link.Weight, 0.1)
		assert.LessOrEqual(t, link.Weight, 2.0)
	}

	assert.True(t, fx.source.processed["sub-1"])
	assert.True(t, fx.source.processed["sub-2"])
	assert.True(t, fx.source.processed["sub-3"])

	assert.Equal(t, []string{dest.ID}, fx.emitter.created)
}

func TestCreateFromSubmissionsNoEligible(t *testing.T) {
	fx := newServiceFixture(t, nil)

	_, err := fx.service.CreateFromSubmissions(context.Background(), "Oslo", "Norway", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no submissions found")
}

func TestCreateFromSubmissionsValidatesLocation(t *testing.T) {
	fx := newServiceFixture(t, nil)

	_, err := fx.service.CreateFromSubmissions(context.Background(), "", "Norway", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestCreateFromSubmissionsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	fx := newServiceFixture(t, pragueSubmissions(now))

	dest, err := fx.service.CreateFromSubmissions(context.Background(), "Prague", "Czech Republic", nil)
	require.NoError(t, err)

	// consumed submissions are processed, so a rerun has nothing to do
	_, err = fx.service.CreateFromSubmissions(context.Background(), "Prague", "Czech Republic", nil)
	require.Error(t, err)

	links, err := fx.links.ListByDestination(context.Background(), dest.ID)
	require.NoError(t, err)
	assert.Len(t, links, 3)
}

func TestCreateFromSubmissionsIncremental(t *testing.T) {
	now := time.Now().UTC()
	subs := pragueSubmissions(now)
	fx := newServiceFixture(t, subs)

	first, err := fx.service.CreateFromSubmissions(context.Background(), "Prague", "Czech Republic", nil)
	require.NoError(t, err)

	fx.source.submissions = append(fx.source.submissions, submissionFixture("sub-4", models.SubmissionTypeAccommodation, "Prague, Czech Republic", map[string]any{
		"accommodationType": "shared-flat",
		"monthlyRent":       600.0,
		"rating":            3.0,
	}, now))

	second, err := fx.service.CreateFromSubmissions(context.Background(), "Prague", "Czech Republic", nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	links, err := fx.links.ListByDestination(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Len(t, links, 4)
	assert.Equal(t, []string{first.ID}, fx.emitter.updated)
}

func TestGetWithAggregationsStaleEnqueuesRefresh(t *testing.T) {
	now := time.Now().UTC()
	fx := newServiceFixture(t, pragueSubmissions(now))

	dest, err := fx.service.CreateFromSubmissions(context.Background(), "Prague", "Czech Republic", nil)
	require.NoError(t, err)

	stale := now.Add(-48 * time.Hour)
	fx.dests.byID[dest.ID].LastDataUpdate = &stale

	view, err := fx.service.GetWithAggregations(context.Background(), dest.ID)
	require.NoError(t, err)
	require.NotNil(t, view)

	// stale snapshot is served immediately, refresh runs in the background
	require.NotNil(t, view.Aggregations)
	assert.Equal(t, 3, view.Aggregations.TotalSubmissions)
	assert.Equal(t, []string{dest.ID}, fx.queue.enqueued)
}

func TestGetWithAggregationsFreshSkipsRefresh(t *testing.T) {
	now := time.Now().UTC()
	fx := newServiceFixture(t, pragueSubmissions(now))

	dest, err := fx.service.CreateFromSubmissions(context.Background(), "Prague", "Czech Republic", nil)
	require.NoError(t, err)

	_, err = fx.service.GetWithAggregations(context.Background(), dest.ID)
	require.NoError(t, err)
	assert.Empty(t, fx.queue.enqueued)
}

func TestRefreshRebuildsSnapshot(t *testing.T) {
	now := time.Now().UTC()
	fx := newServiceFixture(t, pragueSubmissions(now))

	dest, err := fx.service.CreateFromSubmissions(context.Background(), "Prague", "Czech Republic", nil)
	require.NoError(t, err)

	// a refresh re-reads every approved submission, processed included
	fx.source.submissions = append(fx.source.submissions, submissionFixture("sub-4", models.SubmissionTypeExperience, "Prague, Czech Republic", map[string]any{
		"overallRating": 3.0,
		"title":         "Mixed feelings",
	}, now))

	err = fx.service.Refresh(context.Background(), dest.ID)
	require.NoError(t, err)

	refreshed, err := fx.dests.GetByID(context.Background(), dest.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, refreshed.SubmissionCount)

	snapshot := refreshed.Snapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, 4, snapshot.TotalSubmissions)
	require.NotNil(t, snapshot.AverageRating)
	assert.InDelta(t, 4.0, *snapshot.AverageRating, 0.001)

	links, err := fx.links.ListByDestination(context.Background(), dest.ID)
	require.NoError(t, err)
	assert.Len(t, links, 4)
}

func TestRefreshClearsLinksWhenNothingApproved(t *testing.T) {
	now := time.Now().UTC()
	fx := newServiceFixture(t, pragueSubmissions(now))

	dest, err := fx.service.CreateFromSubmissions(context.Background(), "Prague", "Czech Republic", nil)
	require.NoError(t, err)

	for i := range fx.source.submissions {
		fx.source.submissions[i].Status = models.SubmissionStatusRejected
	}

	err = fx.service.Refresh(context.Background(), dest.ID)
	require.NoError(t, err)

	refreshed, err := fx.dests.GetByID(context.Background(), dest.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, refreshed.SubmissionCount)

	links, err := fx.links.ListByDestination(context.Background(), dest.ID)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestApplyOverridesDoesNotMutateSnapshot(t *testing.T) {
	rating := 4.2
	snapshot := models.AggregatedData{
		TotalSubmissions: 10,
		AverageRating:    &rating,
	}
	raw, err := json.Marshal(snapshot)
	require.NoError(t, err)

	overrideRating := 4.8
	overrideCost := 950.0
	description := "Curated description"
	heroImage := "https://cdn.example.com/prague.jpg"
	overrides, err := json.Marshal(models.AdminOverrides{
		AverageRating: &overrideRating,
		AverageCost:   &overrideCost,
		Description:   &description,
		HeroImageURL:  &heroImage,
	})
	require.NoError(t, err)

	dest := &models.Destination{
		ID:             "dest-1",
		City:           "Prague",
		Country:        "Czech Republic",
		AggregatedData: raw,
		AdminOverrides: overrides,
	}

	view := ApplyOverrides(dest)
	require.NotNil(t, view.Aggregations)
	assert.InDelta(t, 4.8, *view.Aggregations.AverageRating, 0.001)
	assert.InDelta(t, 950.0, *view.Aggregations.AverageCost, 0.001)
	require.NotNil(t, view.Description)
	assert.Equal(t, "Curated description", *view.Description)
	require.NotNil(t, view.HeroImageURL)
	assert.Equal(t, "https://cdn.example.com/prague.jpg", *view.HeroImageURL)

	// the stored snapshot keeps its computed values
	stored := dest.Snapshot()
	require.NotNil(t, stored)
	assert.InDelta(t, 4.2, *stored.AverageRating, 0.001)
	assert.Nil(t, stored.AverageCost)
}

func TestApplyOverridesEmptyOverrides(t *testing.T) {
	rating := 3.9
	raw, err := json.Marshal(models.AggregatedData{TotalSubmissions: 2, AverageRating: &rating})
	require.NoError(t, err)

	view := ApplyOverrides(&models.Destination{ID: "dest-1", AggregatedData: raw})
	require.NotNil(t, view.Aggregations)
	assert.InDelta(t, 3.9, *view.Aggregations.AverageRating, 0.001)
}

func TestListOrdersByRating(t *testing.T) {
	fx := newServiceFixture(t, nil)

	mkDest := func(id string, rating float64) models.Destination {
		raw, _ := json.Marshal(models.AggregatedData{AverageRating: &rating})
		return models.Destination{ID: id, AggregatedData: raw}
	}
	fx.dests.listResult = []models.Destination{
		mkDest("low", 2.5),
		mkDest("high", 4.9),
		mkDest("mid", 3.7),
	}

	resp, err := fx.service.List(context.Background(), models.DestinationListRequest{OrderBy: "rating"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, "high", resp.Items[0].ID)
	assert.Equal(t, "mid", resp.Items[1].ID)
	assert.Equal(t, "low", resp.Items[2].ID)
}

func TestSearchRanksNameMatchesFirst(t *testing.T) {
	fx := newServiceFixture(t, nil)

	mkDest := func(id, city, country string, description string) models.Destination {
		dest := models.Destination{ID: id, City: city, Country: country}
		if description != "" {
			dest.Description = &description
		}
		return dest
	}
	fx.dests.searchHits = []models.Destination{
		mkDest("d-1", "Barcelona", "Spain", "Great beaches near Prague street"),
		mkDest("d-2", "Prague", "Czech Republic", ""),
	}

	resp, err := fx.service.Search(context.Background(), SearchRequest{Query: "prague"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "d-2", resp.Results[0].Destination.ID)
	assert.Equal(t, []string{"prague"}, fx.dests.searchTerms)
}

func TestSearchScoresExperienceTitles(t *testing.T) {
	fx := newServiceFixture(t, nil)

	title := "Hiking every weekend"
	snapshot, err := json.Marshal(models.AggregatedData{
		TotalSubmissions: 2,
		Experiences: []models.ExperienceExcerpt{
			{SubmissionID: "sub-1", Title: &title},
			{SubmissionID: "sub-2"},
		},
	})
	require.NoError(t, err)

	fx.dests.searchHits = []models.Destination{
		{ID: "d-1", City: "Innsbruck", Country: "Austria", AggregatedData: snapshot},
		{ID: "d-2", City: "Ghent", Country: "Belgium"},
	}

	resp, err := fx.service.Search(context.Background(), SearchRequest{Query: "hiking"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "d-1", resp.Results[0].Destination.ID)
	assert.Greater(t, resp.Results[0].Score, 0.0)
}

func TestSearchRequiresQuery(t *testing.T) {
	fx := newServiceFixture(t, nil)

	_, err := fx.service.Search(context.Background(), SearchRequest{Query: "   "})
	require.Error(t, err)
}
