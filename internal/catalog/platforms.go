package catalog

import (
	"context"

	"github.com/edusync/platform-sync/internal/models"
	"github.com/edusync/platform-sync/internal/platformsync"
	"github.com/edusync/platform-sync/internal/records"
)

// PlatformStore is the record store surface used by PlatformService.
type PlatformStore interface {
	LoadPlatform(ctx context.Context, id int64) (*models.Platform, error)
	ListPlatforms(ctx context.Context, page, size int) ([]models.Platform, error)
	PlatformNameExists(ctx context.Context, name string, excludeID int64) (bool, error)
	CreatePlatform(ctx context.Context, name string, courseIDs []int64) (*records.PlatformWrite, error)
	UpdatePlatform(ctx context.Context, id int64, name string, courseIDs []int64) (*records.PlatformWrite, error)
	DeletePlatform(ctx context.Context, id int64) error
}

// PlatformInput is the writable shape of a platform.
type PlatformInput struct {
	Name      string
	CourseIDs []int64
}

type PlatformService struct {
	store PlatformStore
	sync  Syncer
}

func NewPlatformService(store PlatformStore, sync Syncer) *PlatformService {
	return &PlatformService{store: store, sync: sync}
}

func (s *PlatformService) Get(ctx context.Context, id int64) (*models.Platform, error) {
	return s.store.LoadPlatform(ctx, id)
}

func (s *PlatformService) List(ctx context.Context, page, size int) ([]models.Platform, error) {
	return s.store.ListPlatforms(ctx, page, size)
}

// Create stores the platform, claims the listed courses and syncs the new
// platform plus every platform that lost one of those courses.
func (s *PlatformService) Create(ctx context.Context, in PlatformInput) (*models.Platform, error) {
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	taken, err := s.store.PlatformNameExists(ctx, in.Name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, conflict("platform", "name", in.Name)
	}

	w, err := s.store.CreatePlatform(ctx, in.Name, in.CourseIDs)
	if err != nil {
		return nil, err
	}
	s.syncWrite(ctx, "platform.create", w)
	return w.Platform, nil
}

// Update renames the platform and makes CourseIDs its exact course set.
func (s *PlatformService) Update(ctx context.Context, id int64, in PlatformInput) (*models.Platform, error) {
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	taken, err := s.store.PlatformNameExists(ctx, in.Name, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, conflict("platform", "name", in.Name)
	}

	w, err := s.store.UpdatePlatform(ctx, id, in.Name, in.CourseIDs)
	if err != nil {
		return nil, err
	}
	s.syncWrite(ctx, "platform.update", w)
	return w.Platform, nil
}

// Delete removes the platform and its document.
func (s *PlatformService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeletePlatform(ctx, id); err != nil {
		return err
	}
	reportSync("platform.delete", s.sync.Delete(afterCommit(ctx), id))
	return nil
}

func (s *PlatformService) syncWrite(ctx context.Context, trigger string, w *records.PlatformWrite) {
	ids := append(platformsync.AffectedPlatformIDs(w.Previous), w.Platform.ID)
	reportSync(trigger, s.sync.SyncPlatforms(afterCommit(ctx), ids))
}
