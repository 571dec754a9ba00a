package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"waitlistd/internal/waitlist/models"
	"waitlistd/internal/waitlist/store"
	"waitlistd/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newEntry(emailHash, phoneHash string) *models.WaitlistEntry {
	return &models.WaitlistEntry{
		CreatedAt: time.Now(),
		EmailHash: emailHash,
		PhoneHash: phoneHash,
	}
}

func (s *MemoryStoreSuite) TestCreateEntry() {
	s.Run("assigns an ID and stores both markers", func() {
		id, err := s.store.CreateEntry(s.ctx, s.newEntry("eh1", "ph1"))
		s.Require().NoError(err)
		s.NotEmpty(id)

		marker, ok := s.store.Marker(models.MarkerKindEmail, "eh1")
		s.Require().True(ok)
		s.Equal(id, marker.WaitlistRef)
		s.Equal(models.MarkerKindEmail, marker.Type)

		marker, ok = s.store.Marker(models.MarkerKindPhone, "ph1")
		s.Require().True(ok)
		s.Equal(id, marker.WaitlistRef)

		count, err := s.store.CountEntries(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, count)
	})

	s.Run("rejects duplicate email", func() {
		_, err := s.store.CreateEntry(s.ctx, s.newEntry("dup-email", "p1"))
		s.Require().NoError(err)

		_, err = s.store.CreateEntry(s.ctx, s.newEntry("dup-email", "p2"))
		s.Require().ErrorIs(err, store.ErrEmailTaken)
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("rejects duplicate phone", func() {
		_, err := s.store.CreateEntry(s.ctx, s.newEntry("e1", "dup-phone"))
		s.Require().NoError(err)

		_, err = s.store.CreateEntry(s.ctx, s.newEntry("e2", "dup-phone"))
		s.Require().ErrorIs(err, store.ErrPhoneTaken)
	})

	s.Run("reports email before phone when both collide", func() {
		_, err := s.store.CreateEntry(s.ctx, s.newEntry("both-email", "both-phone"))
		s.Require().NoError(err)

		_, err = s.store.CreateEntry(s.ctx, s.newEntry("both-email", "both-phone"))
		s.Require().ErrorIs(err, store.ErrEmailTaken)
	})
}

func (s *MemoryStoreSuite) TestConflictLeavesNothingBehind() {
	_, err := s.store.CreateEntry(s.ctx, s.newEntry("held", "p-held"))
	s.Require().NoError(err)

	_, err = s.store.CreateEntry(s.ctx, s.newEntry("held", "p-free"))
	s.Require().ErrorIs(err, store.ErrEmailTaken)

	// The losing attempt must not have reserved its free phone slot.
	_, ok := s.store.Marker(models.MarkerKindPhone, "p-free")
	s.False(ok)

	count, err := s.store.CountEntries(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *MemoryStoreSuite) TestListEntriesNewestFirst() {
	first, err := s.store.CreateEntry(s.ctx, s.newEntry("e1", "p1"))
	s.Require().NoError(err)
	second, err := s.store.CreateEntry(s.ctx, s.newEntry("e2", "p2"))
	s.Require().NoError(err)

	entries, err := s.store.ListEntries(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(second, entries[0].ID)
	s.Equal(first, entries[1].ID)

	limited, err := s.store.ListEntries(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(limited, 1)
	s.Equal(second, limited[0].ID)

	none, err := s.store.ListEntries(s.ctx, -1)
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *MemoryStoreSuite) TestConcurrentDuplicatesExactlyOneWins() {
	const attempts = 50

	// Same email, distinct phones: losers must fail on the email marker and
	// leave their free phone slots unreserved.
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.store.CreateEntry(s.ctx, s.newEntry("same-email", fmt.Sprintf("phone-%d", i)))
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			s.Require().ErrorIs(err, store.ErrEmailTaken)
			s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
		}
	}
	s.Equal(1, wins)

	count, err := s.store.CountEntries(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *MemoryStoreSuite) TestDistinctIdentitiesDoNotCollide() {
	for i := range 5 {
		_, err := s.store.CreateEntry(s.ctx, s.newEntry(
			fmt.Sprintf("email-%d", i),
			fmt.Sprintf("phone-%d", i),
		))
		s.Require().NoError(err)
	}

	count, err := s.store.CountEntries(s.ctx)
	s.Require().NoError(err)
	s.Equal(5, count)
}
