package bqlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jessevdk/go-flags"
	"github.com/viant/mcp-protocol/schema"
	"go.uber.org/zap"

	"github.com/bqlink/bqlink/auth"
	"github.com/bqlink/bqlink/client"
)

// RunOptions extends Options with the one-shot CLI actions.
type RunOptions struct {
	Options
	Query        string `yaml:"query,omitempty" json:"query,omitempty" short:"q" long:"query" description:"sql to execute"`
	Table        string `yaml:"table,omitempty" json:"table,omitempty" long:"table" description:"table to preview (project.dataset.table)"`
	Limit        int64  `yaml:"limit,omitempty" json:"limit,omitempty" long:"limit" description:"preview row limit" default:"10"`
	ListDatasets bool   `yaml:"-" json:"-" long:"datasets" description:"list datasets in the project"`
	ListTools    bool   `yaml:"-" json:"-" long:"tools" description:"list discovered tools"`
	Verbose      bool   `yaml:"-" json:"-" short:"v" long:"verbose" description:"verbose logging"`
}

// Run is the CLI entry point: it wires the token manager and session
// client, runs interactive consent when required, and executes the
// requested action.
func Run(args []string) error {
	options := &RunOptions{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}
	ctx := context.Background()
	logger := zap.NewNop()
	if options.Verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
	}

	cli, manager, err := New(ctx, &options.Options, logger)
	if err != nil {
		return err
	}
	if _, err = manager.EnsureValid(ctx); err != nil {
		if !errors.Is(err, auth.ErrAuthRequired) {
			return err
		}
		fmt.Println("No valid credential found, starting consent flow...")
		if _, err = manager.Authorize(ctx); err != nil {
			return err
		}
	}

	session, err := cli.Initialize(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()
	fmt.Printf("Connected (%v transport)\n", session.Mode())

	if options.ListTools {
		printTools(session)
	}
	if options.ListDatasets {
		result, err := cli.Invoke(ctx, client.ToolListDatasets, map[string]interface{}{})
		if err != nil {
			return err
		}
		printResult(result)
	}
	query := options.Query
	if query == "" && options.Table != "" {
		query = fmt.Sprintf("SELECT * FROM `%v` LIMIT %v", options.Table, options.Limit)
	}
	if query != "" {
		result, err := cli.Invoke(ctx, client.ToolExecuteSQL, map[string]interface{}{"query": query})
		if err != nil {
			return err
		}
		printResult(result)
	}
	return nil
}

func printTools(session *client.Session) {
	if session.Mode() == client.ModeFallback {
		fmt.Printf("Fallback tools: %v, %v\n", client.ToolExecuteSQL, client.ToolListDatasets)
		return
	}
	fmt.Printf("Discovered %v tools:\n", len(session.Tools))
	for name, tool := range session.Tools {
		description := ""
		if tool.Description != nil {
			description = *tool.Description
		}
		fmt.Printf("  %v: %v\n", name, description)
	}
}

func printResult(result *schema.CallToolResult) {
	if result.StructuredContent != nil {
		data, err := json.MarshalIndent(result.StructuredContent, "", "  ")
		if err == nil {
			fmt.Println(string(data))
			return
		}
	}
	for _, elem := range result.Content {
		if text, ok := client.ContentText(elem); ok {
			fmt.Println(text)
		}
	}
}
