package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vinylsync/internal/discogs"
	"vinylsync/internal/models"
	"vinylsync/internal/store"
)

var errDiskFull = errors.New("disk full")

type memStore struct {
	mu          sync.Mutex
	releases    map[int64]*models.Release // by discogs id
	memberships map[models.ListKind]map[string]*models.Membership
	nextID      int64

	failCreate  map[int64]bool // discogs ids whose create fails
	staleFinds  map[int64]int  // lookups that miss a stored release, as if read before a concurrent insert
	creates     int
	updates     int
	memberWrite int
}

func newMemStore() *memStore {
	return &memStore{
		releases:    map[int64]*models.Release{},
		memberships: map[models.ListKind]map[string]*models.Membership{},
		failCreate:  map[int64]bool{},
		staleFinds:  map[int64]int{},
	}
}

func memberKey(userID string, releaseID int64) string {
	return fmt.Sprintf("%s/%d", userID, releaseID)
}

func (s *memStore) FindReleaseByDiscogsID(_ context.Context, discogsID int64) (*models.Release, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleFinds[discogsID] > 0 {
		s.staleFinds[discogsID]--
		return nil, store.ErrReleaseNotFound
	}
	r, ok := s.releases[discogsID]
	if !ok {
		return nil, store.ErrReleaseNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) CreateRelease(_ context.Context, r *models.Release) (*models.Release, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate[r.DiscogsID] {
		return nil, errDiskFull
	}
	if _, ok := s.releases[r.DiscogsID]; ok {
		return nil, store.ErrReleaseExists
	}
	s.nextID++
	s.creates++
	r.ID = s.nextID
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	s.releases[r.DiscogsID] = &cp
	return r, nil
}

func (s *memStore) UpdateRelease(_ context.Context, r *models.Release) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	cp := *r
	s.releases[r.DiscogsID] = &cp
	return nil
}

func (s *memStore) list(kind models.ListKind) map[string]*models.Membership {
	if s.memberships[kind] == nil {
		s.memberships[kind] = map[string]*models.Membership{}
	}
	return s.memberships[kind]
}

func (s *memStore) FindMembership(_ context.Context, kind models.ListKind, userID string, releaseID int64) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.list(kind)[memberKey(userID, releaseID)]
	if !ok {
		return nil, store.ErrMembershipNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) InsertMembership(_ context.Context, kind models.ListKind, m *models.Membership) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey(m.UserID, m.ReleaseID)
	if _, ok := s.list(kind)[key]; ok {
		return nil, store.ErrAlreadyInList
	}
	s.nextID++
	s.memberWrite++
	m.ID = s.nextID
	cp := *m
	s.list(kind)[key] = &cp
	return m, nil
}

func (s *memStore) UpdateMembership(_ context.Context, kind models.ListKind, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberWrite++
	cp := *m
	s.list(kind)[memberKey(m.UserID, m.ReleaseID)] = &cp
	return nil
}

func (s *memStore) count(kind models.ListKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list(kind))
}

type stubFetcher struct {
	items map[models.ListKind][]discogs.Release
	errs  map[models.ListKind]error
}

func (f stubFetcher) FetchAll(_ context.Context, kind models.ListKind) ([]discogs.Release, error) {
	if err := f.errs[kind]; err != nil {
		return nil, err
	}
	return f.items[kind], nil
}

// gatedFetcher holds FetchAll for one list until release is closed. Every held call
// is announced on started.
type gatedFetcher struct {
	stubFetcher
	gate    models.ListKind
	started chan models.ListKind
	release chan struct{}
}

func (f gatedFetcher) FetchAll(ctx context.Context, kind models.ListKind) ([]discogs.Release, error) {
	if kind == f.gate {
		f.started <- kind
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.stubFetcher.FetchAll(ctx, kind)
}

func remoteItem(id int64, title string) discogs.Release {
	return discogs.Release{
		ID: id,
		BasicInformation: discogs.BasicInformation{
			ID:      id,
			Title:   title,
			Year:    1970,
			Artists: []discogs.Artist{{Name: "Artist " + title}},
			Formats: []discogs.Format{{Name: "Vinyl", Qty: "1", Text: "Black"}},
			Genres:  []string{"Rock"},
		},
	}
}
