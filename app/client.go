// Package app puts together the stores of a mail client session on top of a transport.
package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/creativeprojects/mailstate/collection"
	"github.com/creativeprojects/mailstate/folder"
	"github.com/creativeprojects/mailstate/gateway"
	"github.com/creativeprojects/mailstate/lib"
	"github.com/creativeprojects/mailstate/mailbox"
	"github.com/creativeprojects/mailstate/message"
	"github.com/creativeprojects/mailstate/view"
)

// MaxTabs is the default number of tabs open at the same time
const MaxTabs = 20

// Tab shows a folder of a context
type Tab struct {
	Title    string
	Context  mailbox.Context
	FolderID mailbox.FolderID
}

type Options struct {
	Reserved  folder.Reserved
	Tokens    gateway.TokenProvider
	Timeout   time.Duration
	RateLimit float64
	Burst     int
	// DateFormat is the layout of the message timestamps
	DateFormat string
	Location   *time.Location
	Templates  view.Source
	MaxTabs    int
	Logger     lib.Logger
	// Synchronous runs every request before the call returns
	Synchronous bool
}

// Client is a session: one gateway shared by a folder store per context, the message cache,
// the template resolver and the open tabs.
type Client struct {
	mu        sync.Mutex
	gateway   *gateway.Gateway
	directory *folder.Directory
	reserved  folder.Reserved
	log       lib.Logger
	folders   map[mailbox.Context]*folder.Store
	messages  *message.Cache
	views     *view.Resolver
	tabs      *collection.Collection[*Tab]
}

func NewClient(transport gateway.Transport, options Options) (*Client, error) {
	log := lib.OrNoLog(options.Logger)
	gatewayOptions := []gateway.Option{
		gateway.WithLogger(log),
		gateway.WithTimeout(options.Timeout),
		gateway.WithRateLimit(options.RateLimit, options.Burst),
	}
	if options.Tokens != nil {
		gatewayOptions = append(gatewayOptions, gateway.WithTokenProvider(options.Tokens))
	}
	if options.Synchronous {
		gatewayOptions = append(gatewayOptions, gateway.Synchronous())
	}
	caller := gateway.New(transport, gatewayOptions...)

	messages, err := message.NewCache(caller,
		message.WithLogger(log),
		message.WithDateFormat(options.DateFormat, options.Location),
	)
	if err != nil {
		return nil, err
	}

	source := options.Templates
	if source == nil {
		source = view.MapSource{}
	}
	views, err := view.NewResolver(source, view.WithLogger(log))
	if err != nil {
		return nil, err
	}

	reserved := options.Reserved
	if reserved == nil {
		reserved = folder.DefaultReserved()
	}
	maxTabs := options.MaxTabs
	if maxTabs <= 0 {
		maxTabs = MaxTabs
	}
	return &Client{
		gateway:   caller,
		directory: folder.NewDirectory(),
		reserved:  reserved,
		log:       log,
		folders:   make(map[mailbox.Context]*folder.Store),
		messages:  messages,
		views:     views,
		tabs:      collection.New[*Tab](collection.WithLimit[*Tab](maxTabs)),
	}, nil
}

// Folders returns the folder store of the context, created on first use
func (c *Client) Folders(context mailbox.Context) (*folder.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if store, ok := c.folders[context]; ok {
		return store, nil
	}
	store, err := folder.New(c.gateway, context,
		folder.WithDirectory(c.directory),
		folder.WithReserved(c.reserved),
		folder.WithLogger(c.log),
	)
	if err != nil {
		return nil, err
	}
	c.folders[context] = store
	return store, nil
}

func (c *Client) Messages() *message.Cache {
	return c.messages
}

func (c *Client) Views() *view.Resolver {
	return c.views
}

// Directory maps the permanent folder names to their identity, once the context is loaded
func (c *Client) Directory() *folder.Directory {
	return c.directory
}

func (c *Client) Tabs() *collection.Collection[*Tab] {
	return c.tabs
}

// PermanentFolder returns the identity of a permanent folder of a loaded context
func (c *Client) PermanentFolder(context mailbox.Context, slug string) (mailbox.FolderID, error) {
	id, ok := c.directory.Lookup(context, slug)
	if !ok {
		return mailbox.NoFolder, fmt.Errorf("%w: %s/%s", lib.ErrFolderNotFound, context, slug)
	}
	return id, nil
}

// OpenTab adds a tab on top of the others
func (c *Client) OpenTab(title string, context mailbox.Context, folderID mailbox.FolderID) (*Tab, error) {
	if !context.Valid() {
		return nil, fmt.Errorf("%w: %q", lib.ErrUnknownContext, context)
	}
	tab := &Tab{
		Title:    title,
		Context:  context,
		FolderID: folderID,
	}
	if err := c.tabs.Add(tab); err != nil {
		return nil, err
	}
	return tab, nil
}

// Focus puts an open tab on top of the others
func (c *Client) Focus(tab *Tab) error {
	if err := c.tabs.Remove(tab); err != nil {
		return err
	}
	return c.tabs.Add(tab)
}

func (c *Client) CloseTab(tab *Tab) error {
	return c.tabs.Remove(tab)
}

// ActiveTab is the tab on top
func (c *Client) ActiveTab() (*Tab, error) {
	return c.tabs.Last()
}

// Close fails the requests still in flight
func (c *Client) Close() {
	c.gateway.Close()
}
