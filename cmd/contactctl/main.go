// contactctl 是联系表单后台的命令行客户端。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"educonsult/backend/pkg/client"
)

var version = "dev"

// Globals 所有子命令共享的参数
type Globals struct {
	API     string           `help:"API base URL." env:"CONTACTCTL_API" default:"http://localhost:5000"`
	Timeout time.Duration    `help:"Request timeout." default:"15s"`
	JSON    bool             `help:"Print raw JSON instead of a table."`
	Version kong.VersionFlag `help:"Show version." short:"V"`
}

// CLI 顶层命令结构
type CLI struct {
	Globals

	Health HealthCmd `cmd:"" help:"Check that the API is running."`
	List   ListCmd   `cmd:"" help:"List all contact submissions, newest first."`
	Get    GetCmd    `cmd:"" help:"Show one contact submission."`
	Status StatusCmd `cmd:"" help:"Update the status of a submission."`
	Submit SubmitCmd `cmd:"" help:"Submit the contact form."`
}

// runContext 子命令运行时依赖
type runContext struct {
	ctx    context.Context
	client *client.Client
	out    io.Writer
	json   bool
}

func (g *Globals) newClient() *client.Client {
	return client.New(g.API, client.WithHTTPClient(&http.Client{Timeout: g.Timeout}))
}

// HealthCmd GET /
type HealthCmd struct{}

// Run 执行 health 命令
func (c *HealthCmd) Run(rc *runContext) error {
	status, err := rc.client.Health(rc.ctx)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	if rc.json {
		return printJSON(rc.out, status)
	}
	fmt.Fprintf(rc.out, "%s: %s (%s)\n", status.Status, status.Message, status.Timestamp.Format(time.RFC3339))
	return nil
}

// ListCmd GET /api/contacts
type ListCmd struct {
	Status string `help:"Only show submissions with this status."`
}

// Run 执行 list 命令
func (c *ListCmd) Run(rc *runContext) error {
	contacts, err := rc.client.List(rc.ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	if c.Status != "" {
		filtered := contacts[:0]
		for _, contact := range contacts {
			if contact.Status == c.Status {
				filtered = append(filtered, contact)
			}
		}
		contacts = filtered
	}

	if rc.json {
		return printJSON(rc.out, contacts)
	}

	w := tabwriter.NewWriter(rc.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSUBMITTED\tSTATUS\tNAME\tEMAIL\tSERVICE")
	for _, contact := range contacts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			contact.ID,
			contact.SubmittedAt.Local().Format("2006-01-02 15:04"),
			contact.Status,
			contact.Name,
			contact.Email,
			contact.Service,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(rc.out, "%d submission(s)\n", len(contacts))
	return nil
}

// GetCmd GET /api/contacts/:id
type GetCmd struct {
	ID string `arg:"" help:"Submission ID."`
}

// Run 执行 get 命令
func (c *GetCmd) Run(rc *runContext) error {
	contact, err := rc.client.Get(rc.ctx, c.ID)
	if err != nil {
		if client.IsNotFound(err) {
			return fmt.Errorf("get: no submission with id %q", c.ID)
		}
		return fmt.Errorf("get: %w", err)
	}
	if rc.json {
		return printJSON(rc.out, contact)
	}

	fmt.Fprintf(rc.out, "ID:         %s\n", contact.ID)
	fmt.Fprintf(rc.out, "Status:     %s\n", contact.Status)
	fmt.Fprintf(rc.out, "Submitted:  %s\n", contact.SubmittedAt.Format(time.RFC3339))
	if contact.UpdatedAt != nil {
		fmt.Fprintf(rc.out, "Updated:    %s\n", contact.UpdatedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(rc.out, "Name:       %s\n", contact.Name)
	fmt.Fprintf(rc.out, "Email:      %s\n", contact.Email)
	fmt.Fprintf(rc.out, "Phone:      %s\n", contact.Phone)
	fmt.Fprintf(rc.out, "Service:    %s\n", contact.Service)
	fmt.Fprintf(rc.out, "Message:\n%s\n", contact.Message)
	return nil
}

// StatusCmd PATCH /api/contacts/:id/status
type StatusCmd struct {
	ID     string `arg:"" help:"Submission ID."`
	Status string `arg:"" enum:"new,contacted,in-progress,completed,closed" help:"New status (${enum})."`
}

// Run 执行 status 命令
func (c *StatusCmd) Run(rc *runContext) error {
	if err := rc.client.UpdateStatus(rc.ctx, c.ID, c.Status); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	fmt.Fprintf(rc.out, "%s -> %s\n", c.ID, c.Status)
	return nil
}

// SubmitCmd POST /api/contact
type SubmitCmd struct {
	Name     string `help:"Your name." required:""`
	Email    string `help:"Your email." required:""`
	Phone    string `help:"Your phone number." required:""`
	Service  string `help:"Service of interest." required:""`
	Message  string `help:"Message." required:""`
	WhatsApp string `name:"whatsapp" help:"Also print a WhatsApp deep link to this number." env:"CONTACTCTL_WHATSAPP"`
}

// Run 执行 submit 命令
func (c *SubmitCmd) Run(rc *runContext) error {
	input := client.ContactInput{
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Service: c.Service,
		Message: c.Message,
	}

	var opts []client.SubmitterOption
	opened := make(chan string, 1)
	if c.WhatsApp != "" {
		opts = append(opts, client.WithRedirect(c.WhatsApp, client.RedirectorFunc(func(_ context.Context, link string) error {
			opened <- link
			return nil
		})))
	}

	id, err := client.NewSubmitter(rc.client, opts...).Submit(rc.ctx, input)

	// 深链接与提交结果无关，提交结束后再输出，避免与结果交错
	if c.WhatsApp != "" {
		select {
		case link := <-opened:
			fmt.Fprintf(rc.out, "Continue on WhatsApp: %s\n", link)
		case <-time.After(time.Second):
		}
	}

	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fmt.Fprintf(rc.out, "Thank you! Your message has been sent successfully. (id %s)\n", id)
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("contactctl"),
		kong.Description("Review and submit contact form entries."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := kctx.Run(&runContext{
		ctx:    ctx,
		client: cli.newClient(),
		out:    os.Stdout,
		json:   cli.JSON,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
