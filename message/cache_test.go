package message

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

type handler func(params mailbox.MessageParams) (any, error)

// fakeServer answers with the handler registered for the method and records every request
type fakeServer struct {
	mu       sync.Mutex
	handlers map[string]handler
	requests []mailbox.MessageParams
	methods  []string
}

func newFakeServer() *fakeServer {
	return &fakeServer{handlers: make(map[string]handler)}
}

func (f *fakeServer) on(operation string, h handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[mailbox.Method(mailbox.Mail, operation)] = h
}

func (f *fakeServer) Do(ctx context.Context, request gateway.Request) (json.RawMessage, error) {
	params := mailbox.MessageParams{}
	if err := json.Unmarshal(request.Params, &params); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.methods = append(f.methods, request.Method)
	f.requests = append(f.requests, params)
	h, ok := f.handlers[request.Method]
	f.mu.Unlock()
	if !ok {
		return json.RawMessage(`true`), nil
	}
	result, err := h(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (f *fakeServer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.methods)
}

func (f *fakeServer) last() mailbox.MessageParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func listing(infos ...mailbox.MessageInfo) handler {
	return func(mailbox.MessageParams) (any, error) {
		return infos, nil
	}
}

type fixture struct {
	server   *fakeServer
	cache    *Cache
	recorder *event.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	server := newFakeServer()
	caller := gateway.New(server, gateway.Synchronous(), gateway.WithLogger(lib.NewTestLogger(t, "gateway")))
	cache, err := NewCache(caller, WithLogger(lib.NewTestLogger(t, "cache")), WithDateFormat(time.RFC3339, time.UTC))
	require.NoError(t, err)

	recorder := event.NewRecorder(20)
	for _, operation := range []string{Loaded, Deleted, Flagged, Copied, Moved, Tagged} {
		channels := event.Operation(operation)
		for _, channel := range []string{channels.Done, channels.Error, channels.Failed} {
			require.NoError(t, cache.Hub().Subscribe(channel, recorder))
		}
	}
	return &fixture{server: server, cache: cache, recorder: recorder}
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
}

func (f *fixture) load(t *testing.T, folder mailbox.FolderID, infos ...mailbox.MessageInfo) Listing {
	t.Helper()
	f.server.on(mailbox.MessageList, listing(infos...))
	require.NoError(t, f.cache.Load(folder))
	return f.next(t, Loaded).(Listing)
}

func ids(messages []Message) []mailbox.MessageID {
	output := make([]mailbox.MessageID, len(messages))
	for i, m := range messages {
		output[i] = m.ID
	}
	return output
}

func TestReadTwiceScenario(t *testing.T) {
	f := newFixture(t)

	loaded := f.load(t, 1, mailbox.MessageInfo{ID: 10, Flags: []string{}, Tags: []string{}})
	require.Len(t, loaded.Messages, 1)
	assert.Equal(t, mailbox.FolderID(1), loaded.FolderID)
	assert.False(t, loaded.Messages[0].Seen)

	narrowed, err := f.cache.Flag(1, []mailbox.MessageID{10}, Read)
	require.NoError(t, err)
	assert.Equal(t, []mailbox.MessageID{10}, narrowed)
	flagged := f.next(t, Flagged).(FlagChange)
	assert.Equal(t, []mailbox.MessageID{10}, flagged.MessageIDs)
	require.Len(t, flagged.Messages, 1)
	assert.True(t, flagged.Messages[0].Seen)
	assert.Equal(t, lib.FlagSeen, f.server.last().Flag)
	assert.False(t, f.server.last().Remove)

	calls := f.server.count()
	narrowed, err = f.cache.Flag(1, []mailbox.MessageID{10}, Read)
	require.NoError(t, err)
	assert.Empty(t, narrowed)
	assert.Equal(t, calls, f.server.count())
	assert.Equal(t, 0, f.recorder.Len())
}

func TestFlagNarrowsToMessagesNeedingChange(t *testing.T) {
	f := newFixture(t)
	f.load(t, 1,
		mailbox.MessageInfo{ID: 10, Flags: []string{lib.FlagFlagged}},
		mailbox.MessageInfo{ID: 11},
		mailbox.MessageInfo{ID: 12, Flags: []string{lib.FlagFlagged, lib.FlagSeen}},
	)

	narrowed, err := f.cache.Flag(1, []mailbox.MessageID{10, 11, 12, 404}, Unstar)
	require.NoError(t, err)
	assert.Equal(t, []mailbox.MessageID{10, 12}, narrowed)
	assert.True(t, f.server.last().Remove)
	f.next(t, Flagged)

	m, ok := f.cache.GetMessage(12)
	require.True(t, ok)
	assert.False(t, m.Flagged)
	assert.True(t, m.Seen)
	assert.Equal(t, []string{lib.FlagSeen}, m.Flags)
}

func TestFlagErrors(t *testing.T) {
	f := newFixture(t)
	f.load(t, 1, mailbox.MessageInfo{ID: 10})

	_, err := f.cache.Flag(1, []mailbox.MessageID{10}, Action("archive"))
	assert.ErrorIs(t, err, lib.ErrUnknownAction)

	_, err = f.cache.Flag(2, []mailbox.MessageID{10}, Read)
	assert.ErrorIs(t, err, lib.ErrFolderMismatch)

	f.server.on(mailbox.MessageFlag, func(mailbox.MessageParams) (any, error) {
		return nil, &gateway.ApplicationError{Message: "read-only folder"}
	})
	_, err = f.cache.Flag(1, []mailbox.MessageID{10}, Junk)
	require.NoError(t, err)
	f.next(t, event.Operation(Flagged).Error)
	m, _ := f.cache.GetMessage(10)
	assert.False(t, m.Junk)
}

func TestParseAction(t *testing.T) {
	for _, action := range Actions() {
		parsed, err := ParseAction(string(action))
		require.NoError(t, err)
		assert.Equal(t, action, parsed)
	}
	_, err := ParseAction("delete")
	assert.ErrorIs(t, err, lib.ErrUnknownAction)
}

func TestLoadNormalizes(t *testing.T) {
	f := newFixture(t)
	loaded := f.load(t, 1, mailbox.MessageInfo{
		ID:       10,
		Flags:    []string{`\Recent`, lib.FlagAnswered, lib.FlagAnswered},
		Tags:     []string{"work", "Café Bills", "Archive", "WORK"},
		Size:     2048,
		Received: 1600000000,
	})
	m := loaded.Messages[0]
	assert.Equal(t, []string{lib.FlagAnswered}, m.Flags)
	assert.True(t, m.Answered)
	assert.Equal(t, []Tag{{"Archive", "archive"}, {"Café Bills", "cafe-bills"}, {"work", "work"}}, m.Tags)
	assert.Equal(t, "2.0 kB", m.SizeDisplay)
	assert.Equal(t, "2020-09-13T12:26:40Z", m.Received.Display)
	assert.Equal(t, Timestamp{}, m.Arrived)

	empty := f.load(t, 2, mailbox.MessageInfo{ID: 20})
	assert.NotNil(t, empty.Messages[0].Flags)
	assert.NotNil(t, empty.Messages[0].Tags)
}

func TestLoadOnceThenSnapshot(t *testing.T) {
	f := newFixture(t)
	f.load(t, 1, mailbox.MessageInfo{ID: 10})
	f.load(t, 2, mailbox.MessageInfo{ID: 20})
	assert.Equal(t, mailbox.FolderID(2), f.cache.Current())
	calls := f.server.count()

	require.NoError(t, f.cache.Load(1))
	loaded := f.next(t, Loaded).(Listing)
	assert.Equal(t, []mailbox.MessageID{10}, ids(loaded.Messages))
	assert.Equal(t, calls, f.server.count())
	assert.Equal(t, mailbox.FolderID(1), f.cache.Current())

	assert.ErrorIs(t, f.cache.Load(0), lib.ErrMissingArgument)
}

func TestLoadFailure(t *testing.T) {
	f := newFixture(t)
	f.server.on(mailbox.MessageList, func(mailbox.MessageParams) (any, error) {
		return nil, errors.New("broken pipe")
	})
	require.NoError(t, f.cache.Load(1))
	f.next(t, event.Operation(Loaded).Failed)
	assert.Equal(t, mailbox.NoFolder, f.cache.Current())
}

func TestReloadMergesInPlace(t *testing.T) {
	f := newFixture(t)
	f.load(t, 1, mailbox.MessageInfo{ID: 10, Subject: "hello"}, mailbox.MessageInfo{ID: 11})

	f.server.on(mailbox.MessageList, listing(
		mailbox.MessageInfo{ID: 12},
		mailbox.MessageInfo{ID: 10, Subject: "hello again", Flags: []string{lib.FlagSeen}},
	))
	require.NoError(t, f.cache.Reload(1))
	loaded := f.next(t, Loaded).(Listing)
	assert.Equal(t, []mailbox.MessageID{12, 10}, ids(loaded.Messages))

	m, ok := f.cache.GetMessage(10)
	require.True(t, ok)
	assert.Equal(t, "hello again", m.Subject)
	assert.True(t, m.Seen)
	_, ok = f.cache.GetMessage(11)
	assert.False(t, ok)
}

func TestQueriesReturnCopies(t *testing.T) {
	f := newFixture(t)
	f.load(t, 1, mailbox.MessageInfo{ID: 10, Flags: []string{lib.FlagSeen}, Tags: []string{"a"}})

	m, _ := f.cache.GetMessage(10)
	m.Flags[0] = "changed"
	m.Tags[0].Name = "changed"
	m.Subject = "changed"

	again, _ := f.cache.GetMessage(10)
	assert.Equal(t, []string{lib.FlagSeen}, again.Flags)
	assert.Equal(t, "a", again.Tags[0].Name)
	assert.Empty(t, again.Subject)

	messages := f.cache.GetMessages([]mailbox.MessageID{404, 10})
	assert.Equal(t, []mailbox.MessageID{10}, ids(messages))
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	f.load(t, 1, mailbox.MessageInfo{ID: 10}, mailbox.MessageInfo{ID: 11})

	require.NoError(t, f.cache.Delete(1, nil))
	f.nextRejection(t, Deleted, lib.ErrNoMessages)
	assert.ErrorIs(t, f.cache.Delete(3, []mailbox.MessageID{10}), lib.ErrFolderMismatch)

	require.NoError(t, f.cache.Delete(1, []mailbox.MessageID{10}))
	deletion := f.next(t, Deleted).(Deletion)
	assert.Equal(t, Deletion{FolderID: 1, MessageIDs: []mailbox.MessageID{10}}, deletion)

	_, ok := f.cache.GetMessage(10)
	assert.False(t, ok)
	snapshot, _ := f.cache.Snapshot(1)
	assert.Equal(t, []mailbox.MessageID{11}, ids(snapshot))
}

func TestCopyCreatesNewIdentity(t *testing.T) {
	f := newFixture(t)
	f.load(t, 1, mailbox.MessageInfo{ID: 5, Subject: "invoice", Tags: []string{"bills"}})

	f.server.on(mailbox.MessageCopy, func(params mailbox.MessageParams) (any, error) {
		assert.Equal(t, mailbox.FolderID(2), params.TargetFolderID)
		return []mailbox.CopyEntry{{SourceMessageID: 5, TargetMessageID: 901}}, nil
	})
	require.NoError(t, f.cache.Copy(1, []mailbox.MessageID{5}, 2))
	result := f.next(t, Copied).(CopyResult)
	assert.Equal(t, mailbox.FolderID(2), result.TargetFolderID)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, mailbox.MessageID(901), result.Messages[0].ID)

	source, ok := f.cache.GetMessage(5)
	require.True(t, ok)
	copied, ok := f.cache.GetMessage(901)
	require.True(t, ok)
	source.ID = copied.ID
	assert.Equal(t, source, copied)

	folder, _ := f.cache.FolderOf(5)
	assert.Equal(t, mailbox.FolderID(1), folder)
	folder, _ = f.cache.FolderOf(901)
	assert.Equal(t, mailbox.FolderID(2), folder)
	snapshot, _ := f.cache.Snapshot(1)
	assert.Equal(t, []mailbox.MessageID{5}, ids(snapshot))
}

func TestCopyAndMoveRejectSameFolder(t *testing.T) {
	f := newFixture(t)
	f.load(t, 1, mailbox.MessageInfo{ID: 5})
	calls := f.server.count()

	require.NoError(t, f.cache.Copy(1, []mailbox.MessageID{5}, 1))
	f.nextRejection(t, Copied, lib.ErrSameFolder)
	require.NoError(t, f.cache.Move(1, []mailbox.MessageID{5}, 1))
	f.nextRejection(t, Moved, lib.ErrSameFolder)
	require.NoError(t, f.cache.Move(1, nil, 2))
	f.nextRejection(t, Moved, lib.ErrNoMessages)
	assert.ErrorIs(t, f.cache.Copy(1, []mailbox.MessageID{5}, 0), lib.ErrMissingArgument)

	assert.Equal(t, calls, f.server.count())
}

func TestMovePreservesIdentity(t *testing.T) {
	f := newFixture(t)
	f.load(t, 2, mailbox.MessageInfo{ID: 7})
	f.load(t, 1, mailbox.MessageInfo{ID: 5}, mailbox.MessageInfo{ID: 6})

	require.NoError(t, f.cache.Move(1, []mailbox.MessageID{5}, 2))
	result := f.next(t, Moved).(MoveResult)
	assert.Equal(t, MoveResult{FolderID: 1, TargetFolderID: 2, MessageIDs: []mailbox.MessageID{5}}, result)

	source, _ := f.cache.Snapshot(1)
	assert.Equal(t, []mailbox.MessageID{6}, ids(source))
	target, _ := f.cache.Snapshot(2)
	assert.Equal(t, []mailbox.MessageID{7, 5}, ids(target))
	folder, ok := f.cache.FolderOf(5)
	require.True(t, ok)
	assert.Equal(t, mailbox.FolderID(2), folder)
}

func TestMessageInOneFolderOnly(t *testing.T) {
	f := newFixture(t)
	f.load(t, 1, mailbox.MessageInfo{ID: 5}, mailbox.MessageInfo{ID: 6})
	// the server moved 5 behind our back
	f.load(t, 2, mailbox.MessageInfo{ID: 5})

	source, _ := f.cache.Snapshot(1)
	assert.Equal(t, []mailbox.MessageID{6}, ids(source))
	target, _ := f.cache.Snapshot(2)
	assert.Equal(t, []mailbox.MessageID{5}, ids(target))
}

func TestTag(t *testing.T) {
	f := newFixture(t)
	f.load(t, 1, mailbox.MessageInfo{ID: 5, Tags: []string{"Work"}}, mailbox.MessageInfo{ID: 6})

	require.NoError(t, f.cache.Tag(1, []mailbox.MessageID{5}))
	f.nextRejection(t, Tagged, lib.ErrNoTags)
	require.NoError(t, f.cache.Tag(1, nil, "urgent"))
	f.nextRejection(t, Tagged, lib.ErrNoMessages)

	require.NoError(t, f.cache.Tag(1, []mailbox.MessageID{5, 6}, "urgent", "work", " "))
	assert.Equal(t, []string{"urgent", "work"}, f.server.last().Tags)
	change := f.next(t, Tagged).(TagChange)
	assert.Equal(t, []mailbox.MessageID{5, 6}, change.MessageIDs)

	m, _ := f.cache.GetMessage(5)
	assert.Equal(t, []Tag{{"urgent", "urgent"}, {"Work", "work"}}, m.Tags)
	m, _ = f.cache.GetMessage(6)
	assert.Equal(t, []Tag{{"urgent", "urgent"}, {"work", "work"}}, m.Tags)
	assert.True(t, m.HasTag("WORK"))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "cafe-bills", Slug(" Café  Bills!"))
	assert.Equal(t, "2023-taxes", Slug("2023 / Taxes"))
	assert.Equal(t, "", Slug("!!"))
}
