package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tandem-app/checkin-server-go/internal/config"
	"github.com/tandem-app/checkin-server-go/internal/repository"
)

// CleanupJob prunes sessions that were created but never started and clears
// note locks that outlived their TTL across a restart. While the server is
// up, live lock expiry belongs to the note engine's timers; this pass only
// catches locks whose timer died with the process.
type CleanupJob struct {
	sessionRepo repository.SessionRepository
	noteRepo    repository.NoteRepository
	lockTTL     time.Duration
	interval    time.Duration
	done        chan struct{}
}

func NewCleanupJob(
	sessionRepo repository.SessionRepository,
	noteRepo repository.NoteRepository,
	lockTTL time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		sessionRepo: sessionRepo,
		noteRepo:    noteRepo,
		lockTTL:     lockTTL,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.RunOnce(ctx)
}

// RunOnce executes a single cleanup pass. The maintenance endpoint calls it
// directly.
func (j *CleanupJob) RunOnce(ctx context.Context) {
	now := time.Now().UTC()

	j.runCleanup(ctx, "expired note locks", func(ctx context.Context) (int64, error) {
		return j.noteRepo.ClearExpiredLocks(ctx, now.Add(-j.lockTTL))
	})
	j.runCleanup(ctx, "stale sessions", func(ctx context.Context) (int64, error) {
		return j.sessionRepo.DeleteStaleNotStarted(ctx, now.Add(-config.StaleSessionMaxAge))
	})
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
