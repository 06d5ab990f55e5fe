package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/contactgate/contactgate/pkg/session"
	"github.com/jedib0t/go-pretty/v6/table"
)

// SessionStore is the administrative surface of the durable session store.
type SessionStore interface {
	List(ctx context.Context) ([]*session.Value, error)
	DeleteExpired(ctx context.Context) ([]string, error)
}

type Config struct {
	Sessions SessionStore
}

var CLI struct {
	Sessions sessionsCmd `kong:"cmd,help='manage flow sessions'"`
}

type sessionsCmd struct {
	List  sessionsListCmd  `kong:"cmd,help='list live session values',default:'1'"`
	Purge sessionsPurgeCmd `kong:"cmd,help='delete expired session values'"`
}

type sessionsListCmd struct {
}

func (c *sessionsListCmd) Run(cfg *Config) error {
	values, err := cfg.Sessions.List(context.Background())
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Key", "Value", "CreateTime", "ExpiryTime"})
	for _, v := range values {
		t.AppendRow(table.Row{v.Key, v.Value, v.CreateTime, v.ExpiryTime})
	}
	t.Render()
	return nil
}

type sessionsPurgeCmd struct {
}

func (c *sessionsPurgeCmd) Run(cfg *Config) error {
	deleted, err := cfg.Sessions.DeleteExpired(context.Background())
	if err != nil {
		return err
	}
	for _, k := range deleted {
		fmt.Println(k)
	}
	return nil
}
