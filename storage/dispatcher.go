package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/creativeprojects/mailstate/folder"
	"github.com/creativeprojects/mailstate/gateway"
	"github.com/creativeprojects/mailstate/lib"
	"github.com/creativeprojects/mailstate/mailbox"
)

var done = json.RawMessage(`true`)

// rejections are sent back to the client as an application error, any other error is a failure
var rejections = []error{
	lib.ErrFolderNotFound,
	lib.ErrFolderExists,
	lib.ErrMessageNotFound,
	lib.ErrReservedName,
	lib.ErrPermanentFolder,
	lib.ErrFolderCycle,
	lib.ErrSameFolder,
	lib.ErrNoMessages,
	lib.ErrNoTags,
	lib.ErrMissingArgument,
	lib.ErrUnknownMethod,
}

// Dispatcher answers the folder and message methods from a Backend.
// It implements gateway.Transport, so a Gateway can run in-process against it.
type Dispatcher struct {
	mu       sync.Mutex
	backend  Backend
	reserved folder.Reserved
	log      lib.Logger
}

type DispatcherOption func(*Dispatcher)

func WithReserved(reserved folder.Reserved) DispatcherOption {
	return func(d *Dispatcher) {
		if reserved != nil {
			d.reserved = reserved
		}
	}
}

func WithLogger(logger lib.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.log = lib.OrNoLog(logger)
	}
}

func NewDispatcher(backend Backend, options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		backend:  backend,
		reserved: folder.DefaultReserved(),
		log:      &lib.NoLog{},
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Provision creates the permanent folders missing from the backend, in every context
func (d *Dispatcher) Provision() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, scope := range mailbox.Contexts {
		existing, err := d.backend.ListFolders(scope)
		if err != nil {
			return err
		}
		for _, name := range d.reserved[scope] {
			if findByName(existing, name) != nil {
				continue
			}
			if _, err := d.backend.CreateFolder(scope, name, mailbox.NoFolder); err != nil {
				return fmt.Errorf("cannot create folder %q in %s: %w", name, scope, err)
			}
			d.log.Printf("created permanent folder %q in %s", name, scope)
		}
	}
	return nil
}

func (d *Dispatcher) Do(ctx context.Context, request gateway.Request) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scope, operation, ok := mailbox.SplitMethod(request.Method)
	if !ok || !scope.Valid() {
		return nil, gateway.Reject(request.Method, lib.ErrUnknownMethod)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var result any
	var err error
	if strings.HasPrefix(operation, "folders.") {
		params := mailbox.FolderParams{}
		if err := decode(request.Params, &params); err != nil {
			return nil, gateway.Reject(request.Method, err)
		}
		result, err = d.folders(scope, operation, params)
	} else if strings.HasPrefix(operation, "messages.") && scope == mailbox.Mail {
		params := mailbox.MessageParams{}
		if err := decode(request.Params, &params); err != nil {
			return nil, gateway.Reject(request.Method, err)
		}
		result, err = d.messages(operation, params)
	} else {
		err = lib.ErrUnknownMethod
	}
	if err != nil {
		d.log.Printf("request #%d %s: %s", request.ID, request.Method, err)
		if isRejection(err) {
			return nil, &gateway.ApplicationError{Method: request.Method, Message: err.Error(), Err: err}
		}
		return nil, err
	}
	if raw, ok := result.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(result)
}

func (d *Dispatcher) folders(scope mailbox.Context, operation string, params mailbox.FolderParams) (any, error) {
	if operation == mailbox.FolderList {
		return d.backend.ListFolders(scope)
	}
	list, err := d.backend.ListFolders(scope)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(params.Name)

	switch operation {
	case mailbox.FolderAdd:
		if name == "" {
			return nil, fmt.Errorf("%w: folder name", lib.ErrMissingArgument)
		}
		if _, reserved := d.reserved.Slug(scope, name); reserved {
			return nil, lib.ErrReservedName
		}
		if params.ParentID != mailbox.NoFolder {
			if err := d.checkCustom(scope, list, params.ParentID); err != nil {
				return nil, err
			}
		}
		return d.backend.CreateFolder(scope, name, params.ParentID)

	case mailbox.FolderRemove:
		if err := d.checkCustom(scope, list, params.FolderID); err != nil {
			return nil, err
		}
		return done, d.backend.DeleteFolder(scope, params.FolderID)

	case mailbox.FolderRename:
		if name == "" {
			return nil, fmt.Errorf("%w: folder name", lib.ErrMissingArgument)
		}
		if err := d.checkCustom(scope, list, params.FolderID); err != nil {
			return nil, err
		}
		if _, reserved := d.reserved.Slug(scope, name); reserved {
			return nil, lib.ErrReservedName
		}
		return done, d.backend.RenameFolder(scope, params.FolderID, name)

	case mailbox.FolderMove:
		if err := d.checkCustom(scope, list, params.FolderID); err != nil {
			return nil, err
		}
		if params.TargetID != mailbox.NoFolder {
			if err := d.checkCustom(scope, list, params.TargetID); err != nil {
				return nil, err
			}
			if isDescendant(list, params.TargetID, params.FolderID) {
				return nil, lib.ErrFolderCycle
			}
		}
		return done, d.backend.MoveFolder(scope, params.FolderID, params.TargetID)
	}
	return nil, lib.ErrUnknownMethod
}

func (d *Dispatcher) messages(operation string, params mailbox.MessageParams) (any, error) {
	if operation == mailbox.MessageList {
		return d.backend.ListMessages(params.FolderID)
	}
	if len(params.MessageIDs) == 0 {
		return nil, lib.ErrNoMessages
	}

	switch operation {
	case mailbox.MessageRemove:
		return done, d.backend.DeleteMessages(params.FolderID, params.MessageIDs)

	case mailbox.MessageFlag:
		if params.Flag == "" {
			return nil, fmt.Errorf("%w: flag", lib.ErrMissingArgument)
		}
		return done, d.backend.FlagMessages(params.FolderID, params.MessageIDs, params.Flag, params.Remove)

	case mailbox.MessageTag:
		if len(params.Tags) == 0 {
			return nil, lib.ErrNoTags
		}
		return done, d.backend.TagMessages(params.FolderID, params.MessageIDs, params.Tags)

	case mailbox.MessageCopy:
		if params.TargetFolderID == params.FolderID {
			return nil, lib.ErrSameFolder
		}
		return d.backend.CopyMessages(params.FolderID, params.MessageIDs, params.TargetFolderID)

	case mailbox.MessageMove:
		if params.TargetFolderID == params.FolderID {
			return nil, lib.ErrSameFolder
		}
		return done, d.backend.MoveMessages(params.FolderID, params.MessageIDs, params.TargetFolderID)
	}
	return nil, lib.ErrUnknownMethod
}

// checkCustom verifies the folder exists and is not a permanent folder
func (d *Dispatcher) checkCustom(scope mailbox.Context, list []mailbox.FolderInfo, id mailbox.FolderID) error {
	info := findByID(list, id)
	if info == nil {
		return fmt.Errorf("%w: %d", lib.ErrFolderNotFound, id)
	}
	if _, reserved := d.reserved.Slug(scope, info.Name); reserved && info.ParentID == mailbox.NoFolder {
		return lib.ErrPermanentFolder
	}
	return nil
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

func isRejection(err error) bool {
	if _, ok := gateway.IsApplicationError(err); ok {
		return true
	}
	for _, rejection := range rejections {
		if errors.Is(err, rejection) {
			return true
		}
	}
	return false
}

// isDescendant is true when candidate is ancestor itself or sits below it
func isDescendant(list []mailbox.FolderInfo, candidate, ancestor mailbox.FolderID) bool {
	current := candidate
	for steps := 0; steps <= len(list); steps++ {
		if current == ancestor {
			return true
		}
		info := findByID(list, current)
		if info == nil || info.ParentID == mailbox.NoFolder {
			return false
		}
		current = info.ParentID
	}
	return true
}

func findByID(list []mailbox.FolderInfo, id mailbox.FolderID) *mailbox.FolderInfo {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}

func findByName(list []mailbox.FolderInfo, name string) *mailbox.FolderInfo {
	for i := range list {
		if list[i].ParentID == mailbox.NoFolder && strings.EqualFold(list[i].Name, name) {
			return &list[i]
		}
	}
	return nil
}
