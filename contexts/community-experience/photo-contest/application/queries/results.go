package queries

import (
	"context"
	"log/slog"

	application "photocontest/contexts/community-experience/photo-contest/application"
	"photocontest/contexts/community-experience/photo-contest/domain/entities"
	"photocontest/contexts/community-experience/photo-contest/ports"
)

const (
	defaultResultsLimit = 20
	maxResultsLimit     = 100
)

type ResultsQuery struct {
	Archive ports.ResultArchive
	Logger  *slog.Logger
}

// ListResults returns archived announcements, newest first.
func (q ResultsQuery) ListResults(ctx context.Context, limit int) ([]entities.Announcement, error) {
	switch {
	case limit <= 0:
		limit = defaultResultsLimit
	case limit > maxResultsLimit:
		limit = maxResultsLimit
	}
	if q.Archive == nil {
		return []entities.Announcement{}, nil
	}
	items, err := q.Archive.ListAnnouncements(ctx, limit)
	if err != nil {
		application.ResolveLogger(q.Logger).Error("results listing failed",
			"event", "contest_results_list_failed",
			"module", application.ModuleName,
			"layer", "application",
			"error", err.Error(),
		)
		return nil, err
	}
	return items, nil
}
