package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/creativeprojects/mailstate/app"
	"github.com/creativeprojects/mailstate/auth"
	"github.com/creativeprojects/mailstate/cfg"
	"github.com/creativeprojects/mailstate/event"
	"github.com/creativeprojects/mailstate/folder"
	"github.com/creativeprojects/mailstate/lib"
	"github.com/creativeprojects/mailstate/mailbox"
	"github.com/creativeprojects/mailstate/message"
	"github.com/creativeprojects/mailstate/term"
	"github.com/creativeprojects/mailstate/view"
)

type session struct {
	name    string
	account cfg.Account
	conn    *app.Connection
	client  *app.Client
}

func debugLogger(prefix string) lib.Logger {
	if !global.verbose {
		return nil
	}
	return term.Logger(prefix)
}

func selectAccount() (string, cfg.Account, error) {
	name := global.account
	if name == "" {
		names := config.AccountNames()
		switch len(names) {
		case 0:
			return "", cfg.Account{}, errors.New("no account in the configuration")
		case 1:
			name = names[0]
		default:
			return "", cfg.Account{}, fmt.Errorf("missing account name: choose one of %s", strings.Join(names, ", "))
		}
	}
	account, err := config.Account(name)
	if err != nil {
		return "", cfg.Account{}, err
	}
	return name, account, nil
}

func openSession() (*session, error) {
	name, account, err := selectAccount()
	if err != nil {
		return nil, err
	}
	conn, err := app.Open(account, config.ReservedNames(), debugLogger(name+": "))
	if err != nil {
		return nil, fmt.Errorf("cannot open account %q: %w", name, err)
	}
	options := app.Options{
		Reserved:   config.ReservedNames(),
		Timeout:    account.Timeout,
		RateLimit:  account.RateLimit,
		Burst:      account.Burst,
		DateFormat: account.DateFormat,
		Logger:     debugLogger("client: "),
	}
	if config.Templates.Dir != "" {
		options.Templates = view.FSSource{
			FS:        os.DirFS(config.Templates.Dir),
			Extension: config.Templates.Extension,
		}
	}
	if account.Secret != "" {
		tokens, err := auth.NewTokenSource(account.Secret, account.Username, auth.DefaultTTL)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		options.Tokens = tokens
	}
	client, err := app.NewClient(conn.Transport, options)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &session{
		name:    name,
		account: account,
		conn:    conn,
		client:  client,
	}, nil
}

func (s *session) Close() {
	s.client.Close()
	if err := s.conn.Close(); err != nil {
		term.Error(err)
	}
}

// folders loads the folder store of the context
func (s *session) folders(context mailbox.Context, transform folder.Transform) (*folder.Store, folder.Listing, error) {
	store, err := s.client.Folders(context)
	if err != nil {
		return nil, folder.Listing{}, err
	}
	payload, err := event.Await(store.Hub(), folder.Loaded, global.wait, func() error {
		store.Load(transform)
		return nil
	})
	if err != nil {
		return nil, folder.Listing{}, fmt.Errorf("cannot load %s folders: %w", context, err)
	}
	return store, payload.(folder.Listing), nil
}

// folderID finds a folder by identity, permanent name or custom name
func (s *session) folderID(context mailbox.Context, name string) (mailbox.FolderID, error) {
	store, listing, err := s.folders(context, folder.Flat)
	if err != nil {
		return mailbox.NoFolder, err
	}
	if id, err := mailbox.ParseFolderID(name); err == nil {
		if _, found := store.GetFolder(id); found {
			return id, nil
		}
		return mailbox.NoFolder, fmt.Errorf("%w: %d", lib.ErrFolderNotFound, id)
	}
	if id, found := s.client.Directory().Lookup(context, strings.ToLower(name)); found {
		return id, nil
	}
	matches := make([]folder.Folder, 0, 1)
	for _, custom := range listing.Custom {
		if strings.EqualFold(custom.Name, name) {
			matches = append(matches, custom)
		}
	}
	switch len(matches) {
	case 0:
		return mailbox.NoFolder, fmt.Errorf("%w: %q", lib.ErrFolderNotFound, name)
	case 1:
		return matches[0].ID, nil
	}
	return mailbox.NoFolder, fmt.Errorf("more than one folder named %q: use its identity", name)
}

func (s *session) messages(folderID mailbox.FolderID) ([]message.Message, error) {
	cache := s.client.Messages()
	payload, err := event.Await(cache.Hub(), message.Loaded, global.wait, func() error {
		return cache.Load(folderID)
	})
	if err != nil {
		return nil, fmt.Errorf("cannot load messages of folder %d: %w", folderID, err)
	}
	return payload.(message.Listing).Messages, nil
}

// mailFolder loads the messages of a mail folder so it becomes the current folder of the cache
func (s *session) mailFolder(name string) (mailbox.FolderID, error) {
	folderID, err := s.folderID(mailbox.Mail, name)
	if err != nil {
		return mailbox.NoFolder, err
	}
	if _, err := s.messages(folderID); err != nil {
		return mailbox.NoFolder, err
	}
	return folderID, nil
}

func parseContext(name string) (mailbox.Context, error) {
	return mailbox.ParseContext(strings.ToLower(name))
}

func parseMessageIDs(args []string) ([]mailbox.MessageID, error) {
	values := make([]string, 0, len(args))
	for _, arg := range args {
		for _, value := range strings.Split(arg, ",") {
			if value = strings.TrimSpace(value); value != "" {
				values = append(values, value)
			}
		}
	}
	if len(values) == 0 {
		return nil, lib.ErrNoMessages
	}
	ids, err := mailbox.ParseMessageIDs(values)
	if err != nil {
		return nil, fmt.Errorf("invalid message identity: %w", err)
	}
	return ids, nil
}
