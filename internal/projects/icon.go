package projects

import (
	"context"
	"time"

	"github.com/aliuyar1234/projecthub/internal/filestore"
	"github.com/rs/zerolog/log"
)

// uploadIcon stores f before any transaction opens. Storage errors are
// returned as they are.
func (m *Manager) uploadIcon(ctx context.Context, f *filestore.File) (*filestore.Object, error) {
	if f == nil {
		return nil, nil
	}
	obj, err := m.files.Upload(ctx, *f)
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

// discardIcon removes an upload whose transaction rolled back.
func (m *Manager) discardIcon(ctx context.Context, obj *filestore.Object) {
	if obj == nil {
		return
	}
	m.deleteIcon(ctx, obj.ID)
}

func (m *Manager) deleteIcon(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := m.files.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("icon_key", key).Msg("Failed to delete icon")
	}
}
