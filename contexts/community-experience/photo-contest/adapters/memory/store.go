package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"photocontest/contexts/community-experience/photo-contest/domain/entities"
	"photocontest/contexts/community-experience/photo-contest/ports"

	"github.com/google/uuid"
)

// Archive keeps announcements in memory, newest first on read.
type Archive struct {
	mu sync.RWMutex

	announcements map[string]entities.Announcement
}

func NewArchive() *Archive {
	return &Archive{announcements: make(map[string]entities.Announcement)}
}

func (a *Archive) SaveAnnouncement(_ context.Context, announcement entities.Announcement) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := strings.TrimSpace(announcement.AnnouncementID)
	if _, exists := a.announcements[id]; exists {
		return nil
	}
	a.announcements[id] = announcement
	return nil
}

func (a *Archive) ListAnnouncements(_ context.Context, limit int) ([]entities.Announcement, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	items := make([]entities.Announcement, 0, len(a.announcements))
	for _, item := range a.announcements {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].AnnouncedAt.Equal(items[j].AnnouncedAt) {
			return items[i].AnnouncementID > items[j].AnnouncementID
		}
		return items[i].AnnouncedAt.After(items[j].AnnouncedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

type IDGenerator struct{}

func (IDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// SequenceIDs yields prefix-1, prefix-2, ... for tests that assert on ids.
type SequenceIDs struct {
	Prefix string
	n      atomic.Int64
}

func (s *SequenceIDs) NewID(_ context.Context) (string, error) {
	return fmt.Sprintf("%s-%d", s.Prefix, s.n.Add(1)), nil
}

var (
	_ ports.ResultArchive = (*Archive)(nil)
	_ ports.IDGenerator   = IDGenerator{}
	_ ports.IDGenerator   = (*SequenceIDs)(nil)
)
