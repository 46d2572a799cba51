package registry

import (
	"log/slog"
	"strings"
	"sync"

	application "photocontest/contexts/community-experience/photo-contest/application"
	"photocontest/contexts/community-experience/photo-contest/domain/entities"
	domainerrors "photocontest/contexts/community-experience/photo-contest/domain/errors"
)

// Registry tracks at most one live submission per participant for the
// current run. It never talks to the platform; deciding what to do with a
// rejected post is the phase manager's job.
type Registry struct {
	mu sync.RWMutex

	byOwner   map[string]entities.Submission
	byMessage map[string]string
	order     []string

	logger *slog.Logger
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		byOwner:   make(map[string]entities.Submission),
		byMessage: make(map[string]string),
		logger:    application.ResolveLogger(logger),
	}
}

// RecordSubmission claims the owner's slot. Replaying the same message for the
// same owner is accepted without change.
func (r *Registry) RecordSubmission(ownerID string, submission entities.Submission) error {
	ownerID = strings.TrimSpace(ownerID)
	submissionID := strings.TrimSpace(submission.SubmissionID)
	if ownerID == "" || submissionID == "" {
		return domainerrors.ErrInvalidSubmission
	}
	submission.OwnerID = ownerID
	submission.SubmissionID = submissionID

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byOwner[ownerID]; ok {
		if existing.SubmissionID == submissionID {
			return nil
		}
		r.logger.Debug("submission slot already held",
			"event", "contest_registry_duplicate_slot",
			"module", application.ModuleName,
			"layer", "application",
			"owner_id", ownerID,
			"held_submission_id", existing.SubmissionID,
			"rejected_submission_id", submissionID,
		)
		return domainerrors.ErrDuplicateSlot
	}
	if holder, ok := r.byMessage[submissionID]; ok && holder != ownerID {
		return domainerrors.ErrInvalidSubmission
	}

	r.byOwner[ownerID] = submission
	r.byMessage[submissionID] = ownerID
	r.order = append(r.order, submissionID)
	return nil
}

// ReleaseByMessage frees the slot held through submissionID. Unknown ids are
// a no-op.
func (r *Registry) ReleaseByMessage(submissionID string) (entities.Submission, bool) {
	submissionID = strings.TrimSpace(submissionID)

	r.mu.Lock()
	defer r.mu.Unlock()

	ownerID, ok := r.byMessage[submissionID]
	if !ok {
		return entities.Submission{}, false
	}
	released := r.byOwner[ownerID]
	delete(r.byMessage, submissionID)
	delete(r.byOwner, ownerID)
	for i, id := range r.order {
		if id == submissionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return released, true
}

func (r *Registry) HasSlot(ownerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byOwner[strings.TrimSpace(ownerID)]
	return ok
}

func (r *Registry) Lookup(submissionID string) (entities.Submission, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ownerID, ok := r.byMessage[strings.TrimSpace(submissionID)]
	if !ok {
		return entities.Submission{}, false
	}
	return r.byOwner[ownerID], true
}

// Live returns the live submissions in acceptance order.
func (r *Registry) Live() []entities.Submission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]entities.Submission, 0, len(r.order))
	for _, id := range r.order {
		items = append(items, r.byOwner[r.byMessage[id]])
	}
	return items
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byOwner)
}

// ResetAll is called only when a new posting phase starts.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byOwner = make(map[string]entities.Submission)
	r.byMessage = make(map[string]string)
	r.order = nil
}
