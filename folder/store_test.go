package folder

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/creativeprojects/mailstate/event"
	"github.com/creativeprojects/mailstate/gateway"
	"github.com/creativeprojects/mailstate/lib"
	"github.com/creativeprojects/mailstate/mailbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers the folder methods from a fixed listing and counts the calls
type fakeServer struct {
	mu      sync.Mutex
	folders []mailbox.FolderInfo
	nextID  mailbox.FolderID
	calls   []string
	reject  map[string]string
	fail    map[string]bool
	block   chan struct{}
}

func newFakeServer(folders ...mailbox.FolderInfo) *fakeServer {
	return &fakeServer{
		folders: folders,
		nextID:  100,
		reject:  make(map[string]string),
		fail:    make(map[string]bool),
	}
}

func (f *fakeServer) Do(ctx context.Context, request gateway.Request) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, request.Method)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if message, ok := f.reject[request.Method]; ok {
		return nil, &gateway.ApplicationError{Message: message}
	}
	if f.fail[request.Method] {
		return nil, errors.New("connection reset")
	}
	_, operation, _ := mailbox.SplitMethod(request.Method)
	params := mailbox.FolderParams{}
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return nil, err
		}
	}
	switch operation {
	case mailbox.FolderList:
		return json.Marshal(f.folders)
	case mailbox.FolderAdd:
		f.nextID++
		info := mailbox.FolderInfo{ID: f.nextID, Name: params.Name, ParentID: params.ParentID}
		f.folders = append(f.folders, info)
		return json.Marshal(info)
	default:
		return json.RawMessage(`true`), nil
	}
}

func (f *fakeServer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func sampleFolders() []mailbox.FolderInfo {
	return []mailbox.FolderInfo{
		{ID: 1, Name: "Inbox"},
		{ID: 2, Name: "Trash"},
		{ID: 3, Name: "sent"},
		{ID: 10, Name: "Work"},
		{ID: 11, Name: "projects", ParentID: 10},
		{ID: 12, Name: "archive", ParentID: 11},
		{ID: 13, Name: "Banking"},
		{ID: 14, Name: "lost", ParentID: 99},
	}
}

type fixture struct {
	server   *fakeServer
	store    *Store
	recorder *event.Recorder
}

func newFixture(t *testing.T, server *fakeServer, options ...gateway.Option) *fixture {
	t.Helper()
	options = append([]gateway.Option{gateway.WithLogger(lib.NewTestLogger(t, "gateway"))}, options...)
	caller := gateway.New(server, options...)
	t.Cleanup(caller.Close)

	store, err := New(caller, mailbox.Mail, WithLogger(lib.NewTestLogger(t, "folders")))
	require.NoError(t, err)

	recorder := event.NewRecorder(20)
	for _, operation := range []string{Loaded, Added, Removed, Renamed, Moved} {
		channels := event.Operation(operation)
		for _, channel := range []string{channels.Done, channels.Error, channels.Failed} {
			require.NoError(t, store.Hub().Subscribe(channel, recorder))
		}
	}
	return &fixture{server: server, store: store, recorder: recorder}
}

func loadedFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, newFakeServer(sampleFolders()...), gateway.Synchronous())
	f.store.Load(Tree)
	f.next(t, Loaded)
	return f
}

func (f *fixture) next(t *testing.T, channel string) any {
	t.Helper()
	received, err := f.recorder.Next(time.Second)
	require.NoError(t, err)
	require.Equal(t, channel, received.Channel)
	return received.Payload
}

func (f *fixture) nextRejection(t *testing.T, operation string, expected error) {
	t.Helper()
	payload := f.next(t, event.Operation(operation).Error)
	err, ok := payload.(error)
	require.True(t, ok)
	assert.ErrorIs(t, err, expected)
	_, ok = gateway.IsApplicationError(err)
	assert.True(t, ok)
}

func names(folders []Folder) []string {
	output := make([]string, len(folders))
	for i, folder := range folders {
		output[i] = folder.Name
	}
	return output
}

func TestUnknownContext(t *testing.T) {
	_, err := New(gateway.New(newFakeServer()), mailbox.Context("calendar"))
	assert.ErrorIs(t, err, lib.ErrUnknownContext)
}

func TestLoadClassifiesFolders(t *testing.T) {
	f := newFixture(t, newFakeServer(sampleFolders()...), gateway.Synchronous())
	f.store.Load(Tree)

	listing, ok := f.next(t, Loaded).(Listing)
	require.True(t, ok)
	assert.Equal(t, mailbox.Mail, listing.Context)
	// permanent folders come in the reserved order
	assert.Equal(t, []string{"Inbox", "sent", "Trash"}, names(listing.Permanent))
	for _, folder := range listing.Permanent {
		assert.True(t, folder.Permanent)
	}
	// the folder with an unknown parent is a root
	assert.Equal(t, []string{"Work", "Banking", "lost"}, names(listing.Custom))
	require.Len(t, listing.Custom[0].Subfolders, 1)
	assert.Equal(t, "projects", listing.Custom[0].Subfolders[0].Name)
	assert.Equal(t, "archive", listing.Custom[0].Subfolders[0].Subfolders[0].Name)
	assert.Equal(t, mailbox.NoFolder, listing.Custom[2].ParentID)

	id, ok := f.store.Directory().Lookup(mailbox.Mail, "trash")
	assert.True(t, ok)
	assert.Equal(t, mailbox.FolderID(2), id)
	slug, ok := f.store.Directory().Slug(mailbox.Mail, 3)
	assert.True(t, ok)
	assert.Equal(t, "sent", slug)
}

func TestLoadTwiceUsesLocalTree(t *testing.T) {
	f := loadedFixture(t)
	require.Equal(t, 1, f.server.count())

	f.store.Load(Flat)
	listing := f.next(t, Loaded).(Listing)
	assert.Equal(t, Flat, listing.Transform)
	assert.Equal(t, 1, f.server.count())
}

func TestLoadOnlyOneRequestInFlight(t *testing.T) {
	server := newFakeServer(sampleFolders()...)
	server.block = make(chan struct{})
	f := newFixture(t, server)

	f.store.Load(Tree)
	f.store.Load(Flat)
	assert.Eventually(t, func() bool { return server.count() == 1 }, time.Second, 10*time.Millisecond)
	close(server.block)

	listing := f.next(t, Loaded).(Listing)
	assert.Equal(t, Flat, listing.Transform)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, server.count())
	assert.Equal(t, 0, f.recorder.Len())
}

func TestLoadFailure(t *testing.T) {
	server := newFakeServer()
	server.fail["mail.folders.list"] = true
	f := newFixture(t, server, gateway.Synchronous())

	f.store.Load(Tree)
	payload := f.next(t, event.Operation(Loaded).Failed)
	assert.Error(t, payload.(error))

	// a failed load can be retried
	server.fail["mail.folders.list"] = false
	server.folders = sampleFolders()
	f.store.Load(Tree)
	f.next(t, Loaded)
}

func TestFlatTransform(t *testing.T) {
	f := loadedFixture(t)
	listing := f.store.ListFolders(Flat)
	assert.Equal(t, []string{"archive", "Banking", "lost", "projects", "Work"}, names(listing.Custom))
	for _, folder := range listing.Custom {
		assert.Empty(t, folder.Subfolders)
	}
}

func TestOptionsTransform(t *testing.T) {
	f := loadedFixture(t)
	listing := f.store.ListFolders(Options)
	labels := make([]string, len(listing.Choices))
	for i, choice := range listing.Choices {
		labels[i] = choice.Label
	}
	assert.Equal(t, []string{"Inbox", "sent", "Trash", "Work", "  projects", "    archive", "Banking", "lost"}, labels)
	assert.Equal(t, "12", listing.Choices[5].Value)
	assert.Equal(t, 2, listing.Choices[5].Depth)
}

func TestParseTransform(t *testing.T) {
	transform, ok := ParseTransform("options")
	assert.True(t, ok)
	assert.Equal(t, Options, transform)
	_, ok = ParseTransform("columns")
	assert.False(t, ok)
}

func TestPermanentFoldersAreImmutable(t *testing.T) {
	f := loadedFixture(t)
	calls := f.server.count()

	f.store.Remove(1)
	f.nextRejection(t, Removed, lib.ErrPermanentFolder)

	require.NoError(t, f.store.Rename("Letters", 1))
	f.nextRejection(t, Renamed, lib.ErrPermanentFolder)

	f.store.Move(2, 10)
	f.nextRejection(t, Moved, lib.ErrPermanentFolder)

	f.store.Move(10, 3)
	f.nextRejection(t, Moved, lib.ErrPermanentFolder)

	require.NoError(t, f.store.Add("INBOX", mailbox.NoFolder))
	f.nextRejection(t, Added, lib.ErrReservedName)

	require.NoError(t, f.store.Rename(" Drafts ", 10))
	f.nextRejection(t, Renamed, lib.ErrReservedName)

	assert.Equal(t, calls, f.server.count())
	folder, ok := f.store.GetFolder(1)
	require.True(t, ok)
	assert.Equal(t, "Inbox", folder.Name)
}

func TestMissingName(t *testing.T) {
	f := loadedFixture(t)
	assert.ErrorIs(t, f.store.Add("  ", mailbox.NoFolder), lib.ErrMissingArgument)
	assert.ErrorIs(t, f.store.Rename("", 10), lib.ErrMissingArgument)
	assert.Equal(t, 0, f.recorder.Len())
}

func TestAddFolder(t *testing.T) {
	f := loadedFixture(t)

	require.NoError(t, f.store.Add("Taxes", 13))
	folder := f.next(t, Added).(Folder)
	assert.Equal(t, "Taxes", folder.Name)
	assert.Equal(t, mailbox.FolderID(13), folder.ParentID)

	parent, ok := f.store.GetFolder(13)
	require.True(t, ok)
	assert.Equal(t, []string{"Taxes"}, names(parent.Subfolders))

	require.NoError(t, f.store.Add("Taxes", 999))
	f.nextRejection(t, Added, lib.ErrFolderNotFound)
}

func TestAddRejectedByServer(t *testing.T) {
	f := loadedFixture(t)
	f.server.reject["mail.folders.add"] = "folder already exists"

	require.NoError(t, f.store.Add("Work", mailbox.NoFolder))
	payload := f.next(t, event.Operation(Added).Error)
	appErr, ok := gateway.IsApplicationError(payload.(error))
	require.True(t, ok)
	assert.Equal(t, "folder already exists", appErr.Message)
	assert.Equal(t, "mail.folders.add", appErr.Method)
}

func TestRemoveCascades(t *testing.T) {
	f := loadedFixture(t)

	f.store.Remove(11)
	removed := f.next(t, Removed).(RemovedFolder)
	assert.Equal(t, RemovedFolder{FolderID: 11, ParentID: 10}, removed)

	_, ok := f.store.GetFolder(11)
	assert.False(t, ok)
	_, ok = f.store.GetFolder(12)
	assert.False(t, ok)
	work, ok := f.store.GetFolder(10)
	require.True(t, ok)
	assert.Empty(t, work.Subfolders)

	f.store.Remove(11)
	f.nextRejection(t, Removed, lib.ErrFolderNotFound)
}

func TestRenameFolder(t *testing.T) {
	f := loadedFixture(t)

	require.NoError(t, f.store.Rename("Office", 10))
	folder := f.next(t, Renamed).(Folder)
	assert.Equal(t, "Office", folder.Name)
	assert.Len(t, folder.Subfolders, 1)
}

func TestMoveFolder(t *testing.T) {
	f := loadedFixture(t)

	f.store.Move(12, 13)
	moved := f.next(t, Moved).(MovedFolder)
	assert.Equal(t, MovedFolder{SourceFolderID: 12, TargetFolderID: 13}, moved)

	banking, _ := f.store.GetFolder(13)
	assert.Equal(t, []string{"archive"}, names(banking.Subfolders))
	projects, _ := f.store.GetFolder(11)
	assert.Empty(t, projects.Subfolders)

	// back to the root level
	f.store.Move(11, mailbox.NoFolder)
	f.next(t, Moved)
	listing := f.store.ListFolders(Tree)
	assert.Equal(t, []string{"Work", "Banking", "lost", "projects"}, names(listing.Custom))
}

func TestMoveCannotCreateCycle(t *testing.T) {
	f := loadedFixture(t)
	calls := f.server.count()

	f.store.Move(10, 10)
	f.nextRejection(t, Moved, lib.ErrFolderCycle)

	f.store.Move(10, 12)
	f.nextRejection(t, Moved, lib.ErrFolderCycle)

	f.store.Move(10, 404)
	f.nextRejection(t, Moved, lib.ErrFolderNotFound)

	assert.Equal(t, calls, f.server.count())
}

func TestServerCycleIsBroken(t *testing.T) {
	f := newFixture(t, newFakeServer(
		mailbox.FolderInfo{ID: 20, Name: "a", ParentID: 21},
		mailbox.FolderInfo{ID: 21, Name: "b", ParentID: 20},
		mailbox.FolderInfo{ID: 22, Name: "c", ParentID: 22},
	), gateway.Synchronous())
	f.store.Load(Tree)
	listing := f.next(t, Loaded).(Listing)

	assert.Equal(t, []string{"c", "a"}, names(listing.Custom))
	assert.Equal(t, []string{"b"}, names(listing.Custom[1].Subfolders))
	assert.Len(t, f.store.ListFolders(Flat).Custom, 3)
}

func TestPendingMutationIsRejected(t *testing.T) {
	server := newFakeServer(sampleFolders()...)
	f := newFixture(t, server)
	f.store.Load(Tree)
	f.next(t, Loaded)

	server.mu.Lock()
	server.block = make(chan struct{})
	server.mu.Unlock()

	f.store.Remove(13)
	require.NoError(t, f.store.Rename("Money", 13))
	f.nextRejection(t, Renamed, lib.ErrPending)

	require.NoError(t, f.store.Add("Reports", 10))
	require.NoError(t, f.store.Add("reports", 10))
	f.nextRejection(t, Added, lib.ErrPending)

	close(server.block)
	received := map[string]bool{}
	for i := 0; i < 2; i++ {
		got, err := f.recorder.Next(time.Second)
		require.NoError(t, err)
		received[got.Channel] = true
	}
	assert.True(t, received[Removed])
	assert.True(t, received[Added])
}

func TestChangeContextIgnoresPreviousAnswers(t *testing.T) {
	server := newFakeServer(sampleFolders()...)
	server.block = make(chan struct{})
	f := newFixture(t, server)

	f.store.Load(Tree)
	require.NoError(t, f.store.ChangeContext(mailbox.Contacts, Flat))
	assert.Equal(t, mailbox.Contacts, f.store.Context())
	assert.ErrorIs(t, f.store.ChangeContext("calendar", Flat), lib.ErrUnknownContext)

	server.mu.Lock()
	server.folders = []mailbox.FolderInfo{{ID: 30, Name: "All"}, {ID: 31, Name: "Friends"}}
	server.mu.Unlock()
	close(server.block)

	// both list requests end with the same folders: only the second one is published
	listing := f.next(t, Loaded).(Listing)
	assert.Equal(t, mailbox.Contacts, listing.Context)
	assert.Equal(t, Flat, listing.Transform)
	assert.Equal(t, []string{"All"}, names(listing.Permanent))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.recorder.Len())
	server.mu.Lock()
	defer server.mu.Unlock()
	assert.ElementsMatch(t, []string{"mail.folders.list", "contacts.folders.list"}, server.calls)
}
