package zookeeper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn 是内存版的 ZooKeeper 节点树，只实现锁需要的语义。
type fakeConn struct {
	mu       sync.Mutex
	nodes    map[string]bool
	watchers map[string][]chan zk.Event
	seq      int
}

func newFakeConn() *fakeConn {
	return &fakeConn{nodes: map[string]bool{}, watchers: map[string][]chan zk.Event{}}
}

func (f *fakeConn) Exists(path string) (bool, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nodes[path], &zk.Stat{}, nil
}

func (f *fakeConn) ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan zk.Event, 1)
	f.watchers[path] = append(f.watchers[path], ch)
	return f.nodes[path], &zk.Stat{}, ch, nil
}

func (f *fakeConn) Create(path string, _ []byte, _ int32, _ []zk.ACL) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodes[path] {
		return "", zk.ErrNodeExists
	}
	f.nodes[path] = true
	return path, nil
}

func (f *fakeConn) CreateProtectedEphemeralSequential(path string, _ []byte, _ []zk.ACL) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	idx := strings.LastIndex(path, "/")
	node := fmt.Sprintf("%s/_c_guid%d-%s%010d", path[:idx], f.seq, path[idx+1:], f.seq)
	f.nodes[node] = true
	return node, nil
}

func (f *fakeConn) Children(path string) ([]string, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for n := range f.nodes {
		if strings.HasPrefix(n, path+"/") && !strings.Contains(strings.TrimPrefix(n, path+"/"), "/") {
			out = append(out, strings.TrimPrefix(n, path+"/"))
		}
	}
	return out, &zk.Stat{}, nil
}

func (f *fakeConn) Delete(path string, _ int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.nodes[path] {
		return zk.ErrNoNode
	}
	delete(f.nodes, path)
	for _, ch := range f.watchers[path] {
		ch <- zk.Event{Type: zk.EventNodeDeleted, Path: path}
	}
	delete(f.watchers, path)
	return nil
}

func TestDistributedLockSerializesHolders(t *testing.T) {
	conn := newFakeConn()
	first, err := NewDistributedLock(conn, "mint-gift4")
	require.NoError(t, err)
	second, err := NewDistributedLock(conn, "mint-gift4")
	require.NoError(t, err)

	require.NoError(t, first.Lock(context.Background()))

	acquired := make(chan error, 1)
	go func() { acquired <- second.Lock(context.Background()) }()

	select {
	case <-acquired:
		t.Fatal("second holder acquired the lock while the first still holds it")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Unlock())
	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the lock")
	}
	require.NoError(t, second.Unlock())
}

func TestDistributedLockHonoursContext(t *testing.T) {
	conn := newFakeConn()
	holder, err := NewDistributedLock(conn, "mint-gift5")
	require.NoError(t, err)
	require.NoError(t, holder.Lock(context.Background()))

	waiter, err := NewDistributedLock(conn, "mint-gift5")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = waiter.Lock(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	children, _, _ := conn.Children(lockRoot + "/mint-gift5")
	assert.Len(t, children, 1, "abandoned waiter must remove its node")
}

func TestUnlockWithoutLock(t *testing.T) {
	l, err := NewDistributedLock(newFakeConn(), "r")
	require.NoError(t, err)
	assert.Error(t, l.Unlock())
}
