package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"photocontest/contexts/community-experience/photo-contest/ports"
)

var ErrPlatformUnavailable = errors.New("platform unavailable")

type PublishedSurface struct {
	SurfaceID string
	Content   ports.SurfaceContent
}

type Notice struct {
	Destination string
	Text        string
}

type RemovedReaction struct {
	MessageID string
	Marker    string
	UserID    string
}

// Platform is an in-process chat platform. It records every call and keeps
// one de-duplicated reaction counter per surface.
type Platform struct {
	mu sync.Mutex

	seq       int
	published []PublishedSurface
	counts    map[string]int
	edits     map[string][]ports.SurfaceContent
	cleared   []string
	removed   []RemovedReaction
	deleted   []string
	notices   []Notice
	threads   []string

	failPublishMedia map[string]bool
	failFetch        map[string]bool
	failThreads      bool

	// BeforePublish runs before each surface is minted, outside the lock.
	BeforePublish func(ctx context.Context, content ports.SurfaceContent)
}

func NewPlatform() *Platform {
	return &Platform{
		counts:           make(map[string]int),
		edits:            make(map[string][]ports.SurfaceContent),
		failPublishMedia: make(map[string]bool),
		failFetch:        make(map[string]bool),
	}
}

func (p *Platform) PublishSurface(ctx context.Context, content ports.SurfaceContent) (string, error) {
	if hook := p.BeforePublish; hook != nil {
		hook(ctx, content)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failPublishMedia[content.MediaURL] {
		return "", ErrPlatformUnavailable
	}
	p.seq++
	surfaceID := fmt.Sprintf("surface-%d", p.seq)
	p.published = append(p.published, PublishedSurface{SurfaceID: surfaceID, Content: content})
	p.counts[surfaceID] = 0
	return surfaceID, nil
}

func (p *Platform) AddMarker(_ context.Context, surfaceID string, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.counts[surfaceID]; !ok {
		return ErrPlatformUnavailable
	}
	p.counts[surfaceID]++
	return nil
}

func (p *Platform) FetchReactionCount(_ context.Context, surfaceID string, _ string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFetch[surfaceID] {
		return 0, ErrPlatformUnavailable
	}
	return p.counts[surfaceID], nil
}

func (p *Platform) EditSurface(_ context.Context, surfaceID string, content ports.SurfaceContent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.edits[surfaceID] = append(p.edits[surfaceID], content)
	return nil
}

func (p *Platform) ClearReactions(_ context.Context, surfaceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[surfaceID] = 0
	p.cleared = append(p.cleared, surfaceID)
	return nil
}

func (p *Platform) RemoveReaction(_ context.Context, messageID string, marker string, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.counts[messageID] > 0 {
		p.counts[messageID]--
	}
	p.removed = append(p.removed, RemovedReaction{MessageID: messageID, Marker: marker, UserID: userID})
	return nil
}

func (p *Platform) DeleteMessage(_ context.Context, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, messageID)
	return nil
}

func (p *Platform) SendNotice(_ context.Context, destination string, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, Notice{Destination: destination, Text: text})
	return nil
}

func (p *Platform) CreateThread(_ context.Context, parentID string, title string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failThreads {
		return "", ErrPlatformUnavailable
	}
	p.seq++
	threadID := fmt.Sprintf("thread-%d", p.seq)
	p.threads = append(p.threads, threadID)
	return threadID, nil
}

// AddVotes simulates n distinct users adding the vote marker.
func (p *Platform) AddVotes(surfaceID string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[surfaceID] += n
}

func (p *Platform) FailPublishFor(mediaURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failPublishMedia[mediaURL] = true
}

func (p *Platform) FailFetchFor(surfaceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failFetch[surfaceID] = true
}

func (p *Platform) FailThreads() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failThreads = true
}

func (p *Platform) Published() []PublishedSurface {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedSurface(nil), p.published...)
}

func (p *Platform) Edits(surfaceID string) []ports.SurfaceContent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ports.SurfaceContent(nil), p.edits[surfaceID]...)
}

func (p *Platform) Cleared() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.cleared...)
}

func (p *Platform) RemovedReactions() []RemovedReaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]RemovedReaction(nil), p.removed...)
}

func (p *Platform) Deleted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deleted...)
}

func (p *Platform) Notices() []Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Notice(nil), p.notices...)
}

// NoticesContaining returns notice texts that contain fragment.
func (p *Platform) NoticesContaining(fragment string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var items []string
	for _, notice := range p.notices {
		if strings.Contains(notice.Text, fragment) {
			items = append(items, notice.Text)
		}
	}
	return items
}

var _ ports.Platform = (*Platform)(nil)
