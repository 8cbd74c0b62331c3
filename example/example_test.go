package example

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.uber.org/zap"

	"github.com/bqlink/bqlink"
	"github.com/bqlink/bqlink/auth"
	"github.com/bqlink/bqlink/client"
)

// Usage_Example shows the full lifecycle: configure, ensure a credential,
// establish a session and run a query over whichever transport came up.
func Usage_Example() {
	ctx := context.Background()
	options := &bqlink.Options{
		Project: "my-project",
		Auth: &bqlink.AuthOptions{
			ClientSecretURL: "file:///secret/google-client.json",
		},
	}
	logger, _ := zap.NewDevelopment()

	sessionClient, manager, err := bqlink.New(ctx, options, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer sessionClient.Close()

	// First run has no cached credential: walk the user through consent
	if _, err = manager.EnsureValid(ctx); errors.Is(err, auth.ErrAuthRequired) {
		if _, err = manager.Authorize(ctx); err != nil {
			log.Fatal(err)
		}
	}

	session, err := sessionClient.Initialize(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("session %v established over %v transport\n", session.ID, session.Mode())

	result, err := sessionClient.Invoke(ctx, client.ToolExecuteSQL, map[string]interface{}{
		"query":      "SELECT name, SUM(number) AS total FROM `bigquery-public-data.usa_names.usa_1910_2013` GROUP BY name ORDER BY total DESC LIMIT 10",
		"maxResults": 10,
	})
	if err != nil {
		if failure, ok := client.AsFailure(err); ok {
			log.Fatalf("invocation failed (%v): %v", failure.Kind, failure)
		}
		log.Fatal(err)
	}
	for _, content := range result.Content {
		if text, ok := client.ContentText(content); ok {
			fmt.Println(text)
		}
	}
}
