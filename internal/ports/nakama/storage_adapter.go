package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bataille/internal/domain"
	"bataille/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// storageBackend is the part of runtime.NakamaModule used for match persistence.
type storageBackend interface {
	StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error)
	StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error)
	MultiUpdate(ctx context.Context, accountUpdates []*runtime.AccountUpdate, storageWrites []*runtime.StorageWrite, storageDeletes []*runtime.StorageDelete, walletUpdates []*runtime.WalletUpdate, updateLedger bool) ([]*api.StorageObjectAck, []*runtime.WalletUpdateResult, error)
}

// NakamaMatchStore implements ports.MatchRepository on Nakama storage objects.
// Live matches and archived results live in separate system-owned collections;
// clients may read them but never write.
type NakamaMatchStore struct {
	nk storageBackend
}

var _ ports.MatchRepository = (*NakamaMatchStore)(nil)

func NewNakamaMatchStore(nk storageBackend) *NakamaMatchStore {
	return &NakamaMatchStore{nk: nk}
}

func (s *NakamaMatchStore) Create(ctx context.Context, m *domain.Match) error {
	if archived, err := s.read(ctx, archiveCollection, m.ID); err != nil {
		return err
	} else if archived != nil {
		return ports.ErrAlreadyExists
	}

	value, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal match %s: %w", m.ID, err)
	}
	_, err = s.nk.StorageWrite(ctx, []*runtime.StorageWrite{s.write(matchCollection, m.ID, value, "*")})
	if errors.Is(err, runtime.ErrStorageRejectedVersion) {
		return ports.ErrAlreadyExists
	}
	return err
}

func (s *NakamaMatchStore) Load(ctx context.Context, id string) (*domain.Match, error) {
	objects, err := s.nk.StorageRead(ctx, []*runtime.StorageRead{
		{Collection: matchCollection, Key: id},
		{Collection: archiveCollection, Key: id},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read match %s: %w", id, err)
	}

	var archived *api.StorageObject
	for _, obj := range objects {
		if obj.GetCollection() == matchCollection {
			return decodeMatch(obj)
		}
		archived = obj
	}
	if archived == nil {
		return nil, ports.ErrNotFound
	}
	return decodeMatch(archived)
}

func (s *NakamaMatchStore) Save(ctx context.Context, m *domain.Match) error {
	obj, err := s.current(ctx, m)
	if err != nil {
		return err
	}
	value, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal match %s: %w", m.ID, err)
	}

	_, err = s.nk.StorageWrite(ctx, []*runtime.StorageWrite{s.write(matchCollection, m.ID, value, obj.GetVersion())})
	if errors.Is(err, runtime.ErrStorageRejectedVersion) {
		return ports.ErrVersionConflict
	}
	return err
}

// Archive writes the final snapshot and deletes the live object in one MultiUpdate.
func (s *NakamaMatchStore) Archive(ctx context.Context, m *domain.Match) error {
	obj, err := s.current(ctx, m)
	if err != nil {
		return err
	}
	value, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal match %s: %w", m.ID, err)
	}

	writes := []*runtime.StorageWrite{s.write(archiveCollection, m.ID, value, "*")}
	deletes := []*runtime.StorageDelete{{
		Collection: matchCollection,
		Key:        m.ID,
		Version:    obj.GetVersion(),
	}}
	_, _, err = s.nk.MultiUpdate(ctx, nil, writes, deletes, nil, false)
	if errors.Is(err, runtime.ErrStorageRejectedVersion) {
		return ports.ErrVersionConflict
	}
	return err
}

// current returns the live object m replaces, checking the aggregate version.
func (s *NakamaMatchStore) current(ctx context.Context, m *domain.Match) (*api.StorageObject, error) {
	obj, err := s.read(ctx, matchCollection, m.ID)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		// Already archived or never created; either way nothing live to replace.
		if archived, err := s.read(ctx, archiveCollection, m.ID); err == nil && archived != nil {
			return nil, ports.ErrVersionConflict
		}
		return nil, ports.ErrNotFound
	}
	stored, err := decodeMatch(obj)
	if err != nil {
		return nil, err
	}
	if stored.Version != m.Version-1 {
		return nil, ports.ErrVersionConflict
	}
	return obj, nil
}

func (s *NakamaMatchStore) read(ctx context.Context, collection, key string) (*api.StorageObject, error) {
	objects, err := s.nk.StorageRead(ctx, []*runtime.StorageRead{{Collection: collection, Key: key}})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", collection, key, err)
	}
	if len(objects) == 0 {
		return nil, nil
	}
	return objects[0], nil
}

func (s *NakamaMatchStore) write(collection, key string, value []byte, version string) *runtime.StorageWrite {
	return &runtime.StorageWrite{
		Collection:      collection,
		Key:             key,
		Value:           string(value),
		Version:         version,
		PermissionRead:  runtime.STORAGE_PERMISSION_PUBLIC_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}
}

func decodeMatch(obj *api.StorageObject) (*domain.Match, error) {
	var m domain.Match
	if err := json.Unmarshal([]byte(obj.GetValue()), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match %s: %w", obj.GetKey(), err)
	}
	return &m, nil
}
