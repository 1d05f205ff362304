package lib

import "errors"

// Contract errors: returned to the caller, never published on a channel.
var (
	ErrUnknownChannel    = errors.New("channel not declared")
	ErrChannelExists     = errors.New("channel already declared")
	ErrDuplicateObserver = errors.New("observer already subscribed")
	ErrObserverNotFound  = errors.New("observer not subscribed")
	ErrDuplicateEntity   = errors.New("entity already in collection")
	ErrEntityNotFound    = errors.New("entity not in collection")
	ErrCollectionEmpty   = errors.New("collection is empty")
	ErrCollectionFull    = errors.New("collection is full")
	ErrMissingArgument   = errors.New("missing argument")
	ErrFolderMismatch    = errors.New("folder is not the current folder")
	ErrUnknownAction     = errors.New("unknown flag action")
	ErrUnknownContext    = errors.New("unknown folder context")
	ErrTemplateNotFound  = errors.New("template source not found")
)

// Rejections: published on the operation error channel, or returned by a backend.
var (
	ErrReservedName    = errors.New("name is reserved for a permanent folder")
	ErrPermanentFolder = errors.New("permanent folders cannot be modified")
	ErrFolderNotFound  = errors.New("folder not found")
	ErrFolderExists    = errors.New("folder already exists")
	ErrFolderCycle     = errors.New("folder cannot be moved inside itself")
	ErrMessageNotFound = errors.New("message not found")
	ErrSameFolder      = errors.New("source and target folders are the same")
	ErrNoMessages      = errors.New("no message selected")
	ErrNoTags          = errors.New("no tag given")
	ErrPending         = errors.New("another request is in progress")
	ErrUnknownMethod   = errors.New("unknown method")
	ErrUnauthorized    = errors.New("unauthorized")
)
