package nakama

import (
	"context"
	"fmt"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type sentMessage struct {
	opCode     int64
	data       []byte
	recipients []string
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	sent         []sentMessage
	labelUpdates int
	lastLabel    string
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	msg := sentMessage{opCode: opCode, data: append([]byte(nil), data...)}
	for _, p := range presences {
		msg.recipients = append(msg.recipients, p.GetUserId())
	}
	md.sent = append(md.sent, msg)
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labelUpdates++
	md.lastLabel = label
	return nil
}

func (md *mockDispatcher) byOpCode(opCode int64) []sentMessage {
	var out []sentMessage
	for _, msg := range md.sent {
		if msg.opCode == opCode {
			out = append(out, msg)
		}
	}
	return out
}

type mockPresence struct {
	userID string
}

func (p mockPresence) GetHidden() bool                   { return false }
func (p mockPresence) GetPersistence() bool              { return false }
func (p mockPresence) GetUsername() string               { return p.userID }
func (p mockPresence) GetStatus() string                 { return "" }
func (p mockPresence) GetReason() runtime.PresenceReason { return runtime.PresenceReasonUnknown }
func (p mockPresence) GetUserId() string                 { return p.userID }
func (p mockPresence) GetSessionId() string              { return "session-" + p.userID }
func (p mockPresence) GetNodeId() string                 { return "node-1" }

type mockMatchData struct {
	mockPresence
	opCode int64
	data   []byte
}

func (d mockMatchData) GetOpCode() int64      { return d.opCode }
func (d mockMatchData) GetData() []byte       { return d.data }
func (d mockMatchData) GetReliable() bool     { return true }
func (d mockMatchData) GetReceiveTime() int64 { return 0 }

// fakeStorage is an in-memory Nakama storage honouring object versions.
type fakeStorage struct {
	objects map[string]*api.StorageObject
	nextVer int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string]*api.StorageObject)}
}

func storageKey(collection, key string) string {
	return collection + "/" + key
}

func (fs *fakeStorage) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	var out []*api.StorageObject
	for _, r := range reads {
		if obj, ok := fs.objects[storageKey(r.Collection, r.Key)]; ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (fs *fakeStorage) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	for _, w := range writes {
		if err := fs.check(w.Collection, w.Key, w.Version); err != nil {
			return nil, err
		}
	}
	return fs.apply(writes), nil
}

func (fs *fakeStorage) MultiUpdate(ctx context.Context, accountUpdates []*runtime.AccountUpdate, storageWrites []*runtime.StorageWrite, storageDeletes []*runtime.StorageDelete, walletUpdates []*runtime.WalletUpdate, updateLedger bool) ([]*api.StorageObjectAck, []*runtime.WalletUpdateResult, error) {
	for _, w := range storageWrites {
		if err := fs.check(w.Collection, w.Key, w.Version); err != nil {
			return nil, nil, err
		}
	}
	for _, d := range storageDeletes {
		if err := fs.check(d.Collection, d.Key, d.Version); err != nil {
			return nil, nil, err
		}
	}
	acks := fs.apply(storageWrites)
	for _, d := range storageDeletes {
		delete(fs.objects, storageKey(d.Collection, d.Key))
	}
	return acks, nil, nil
}

func (fs *fakeStorage) check(collection, key, version string) error {
	obj, exists := fs.objects[storageKey(collection, key)]
	switch {
	case version == "":
		return nil
	case version == "*":
		if exists {
			return runtime.ErrStorageRejectedVersion
		}
	case !exists || obj.Version != version:
		return runtime.ErrStorageRejectedVersion
	}
	return nil
}

func (fs *fakeStorage) apply(writes []*runtime.StorageWrite) []*api.StorageObjectAck {
	acks := make([]*api.StorageObjectAck, 0, len(writes))
	for _, w := range writes {
		fs.nextVer++
		version := fmt.Sprintf("v%d", fs.nextVer)
		fs.objects[storageKey(w.Collection, w.Key)] = &api.StorageObject{
			Collection:      w.Collection,
			Key:             w.Key,
			Value:           w.Value,
			Version:         version,
			PermissionRead:  int32(w.PermissionRead),
			PermissionWrite: int32(w.PermissionWrite),
		}
		acks = append(acks, &api.StorageObjectAck{Collection: w.Collection, Key: w.Key, Version: version})
	}
	return acks
}
