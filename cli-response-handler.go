package main

import (
	"errors"
	"fmt"
	"io"

	"grokchat/services"

	"github.com/charmbracelet/glamour"
	color "github.com/fatih/color"
)

type CliResponseHandler struct {
	Out   io.Writer
	Style string
}

func (cli CliResponseHandler) FinalText(result services.QueryResult) {
	out, err := glamour.Render(result.Content, cli.Style)
	if err != nil {
		out = result.Content + "\n"
	}
	fmt.Fprint(cli.Out, out)

	color.New(color.FgHiBlack).Fprintf(cli.Out, "[%s] prompt %d, completion %d, total %d tokens\n",
		result.Model, result.Usage.PromptTokens, result.Usage.CompletionTokens, result.Usage.TotalTokens)
}

func (cli CliResponseHandler) Failed(err error) {
	c := color.New(color.FgRed)
	if errors.Is(err, services.ErrRateLimited) {
		c = color.New(color.FgYellow)
	}
	c.Fprintln(cli.Out, err.Error())
}

func (cli CliResponseHandler) Notice(text string) {
	color.New(color.FgYellow).Fprintln(cli.Out, text)
}

func (cli CliResponseHandler) Status(status services.Status) {
	if !status.Active {
		color.New(color.FgHiBlack).Fprintln(cli.Out, "no active session")
		return
	}
	color.New(color.FgHiBlack).Fprintf(cli.Out, "session started %s, %d exchanges, %d requests and %d completion tokens today\n",
		status.SessionStart, status.ConversationCount, status.UsageToday.Requests, status.UsageToday.CompletionTokens)
}
