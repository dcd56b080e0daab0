package localstore

import (
	"academy_backend/internal/model"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "cache.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func testCtx() model.SyncContext {
	return model.SyncContext{TenantID: "t1", UserID: "u1", Reachable: false}
}

func TestPutGetRoundtrip(t *testing.T) {
	store := newTestStore(t)
	sctx := testCtx()
	key := Key(sctx, KindProgress)

	in := &model.UserProgress{TenantID: "t1", UserID: "u1", TotalXP: 120, CurrentLevel: 1}
	if err := store.Put(key, in); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var out model.UserProgress
	found, err := store.Get(key, &out)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if out.TotalXP != 120 {
		t.Errorf("TotalXP = %d, want 120", out.TotalXP)
	}

	// 覆盖写
	in.TotalXP = 200
	if err := store.Put(key, in); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	if _, err := store.Get(key, &out); err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if out.TotalXP != 200 {
		t.Errorf("TotalXP after overwrite = %d, want 200", out.TotalXP)
	}
}

func TestGetMissingKey(t *testing.T) {
	store := newTestStore(t)
	var out model.UserProgress
	found, err := store.Get("t1/u1/progress", &out)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("found = true for missing key")
	}
}

func TestKeysByPrefix(t *testing.T) {
	store := newTestStore(t)
	sctx := testCtx()

	for _, id := range []string{"l1", "l2"} {
		if err := store.Put(Key(sctx, KindLesson, id), map[string]string{"id": id}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	other := model.SyncContext{TenantID: "t1", UserID: "u2"}
	if err := store.Put(Key(other, KindLesson, "l9"), map[string]string{"id": "l9"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	keys, err := store.Keys(Key(sctx, KindLesson) + "/")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("len(keys) = %d, want 2: %v", len(keys), keys)
	}
}

func TestClearPrefixRemovesEntriesAndOutbox(t *testing.T) {
	store := newTestStore(t)
	sctx := testCtx()

	if err := store.Put(Key(sctx, KindProgress), map[string]int{"x": 1}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Enqueue(sctx, OutboxProgress, "self", map[string]int{"x": 1}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	other := model.SyncContext{TenantID: "t1", UserID: "u2"}
	if err := store.Put(Key(other, KindProgress), map[string]int{"x": 2}); err != nil {
		t.Fatalf("Put other: %v", err)
	}

	if err := store.ClearPrefix(sctx); err != nil {
		t.Fatalf("ClearPrefix: %v", err)
	}

	var out map[string]int
	if found, _ := store.Get(Key(sctx, KindProgress), &out); found {
		t.Error("entry survived ClearPrefix")
	}
	pending, err := store.Pending(sctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("len(pending) = %d, want 0", len(pending))
	}
	// 其他用户的数据不受影响
	if found, _ := store.Get(Key(other, KindProgress), &out); !found {
		t.Error("other user entry was cleared")
	}
}

func TestEnqueueDeduplicatesSnapshots(t *testing.T) {
	store := newTestStore(t)
	sctx := testCtx()

	if err := store.Enqueue(sctx, OutboxProgress, "self", map[string]int{"totalXp": 10}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.Enqueue(sctx, OutboxProgress, "self", map[string]int{"totalXp": 30}); err != nil {
		t.Fatalf("Enqueue again: %v", err)
	}
	// 不同 refID 的条目不去重
	if err := store.Enqueue(sctx, OutboxHistory, "h1", map[string]int{"amount": 5}); err != nil {
		t.Fatalf("Enqueue history: %v", err)
	}

	pending, err := store.Pending(sctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2", len(pending))
	}
	if string(pending[0].Payload) != `{"totalXp":30}` {
		t.Errorf("snapshot payload = %s, want latest", pending[0].Payload)
	}
}

func TestAckRemovesEntry(t *testing.T) {
	store := newTestStore(t)
	sctx := testCtx()

	if err := store.Enqueue(sctx, OutboxLesson, "l1", map[string]int{"x": 1}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	pending, _ := store.Pending(sctx)
	if len(pending) != 1 {
		t.Fatalf("len(pending) = %d, want 1", len(pending))
	}
	if err := store.Ack(pending[0].ID); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	pending, _ = store.Pending(sctx)
	if len(pending) != 0 {
		t.Errorf("len(pending) = %d after Ack, want 0", len(pending))
	}
}
