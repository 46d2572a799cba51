// Package photocontest implements the photo contest inside the
// community-experience context.
//
// The module owns the contest lifecycle (posting, voting, tie-break, closed),
// the one-photo-per-participant registry, ballot publication and tallying of
// platform reactions, and the timed second round that settles a tie. Chat
// platform traffic reaches it as bus events; announcements leave it as bus
// events that the result archiver persists.
package photocontest
