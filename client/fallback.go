package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/viant/mcp-protocol/schema"
	"go.uber.org/zap"

	"github.com/bqlink/bqlink/bigquery"
)

// invokeFallback translates the logical tool call into the equivalent REST
// call against the service's native API, producing the same result shape
// the protocol path would have. Only the fixed minimal tool set is
// recognized; tool discovery is unavailable without the protocol channel.
func (c *Client) invokeFallback(ctx context.Context, name string, arguments map[string]interface{}) (*schema.CallToolResult, error) {
	switch name {
	case ToolExecuteSQL:
		return c.fallbackExecuteSQL(ctx, arguments)
	case ToolListDatasets:
		return c.fallbackListDatasets(ctx, arguments)
	default:
		return nil, newFailure(KindUnknownTool, ModeFallback,
			fmt.Sprintf("tool %q is not available over the fallback transport", name), nil)
	}
}

func (c *Client) fallbackExecuteSQL(ctx context.Context, arguments map[string]interface{}) (*schema.CallToolResult, error) {
	query, _ := arguments["query"].(string)
	if query == "" {
		return nil, newFailure(KindProtocol, ModeFallback, "execute_sql requires a query argument", nil)
	}
	request := &bigquery.QueryRequest{Query: query}
	if maxResults, ok := numberArgument(arguments, "maxResults"); ok {
		request.MaxResults = maxResults
	}
	if location, ok := arguments["location"].(string); ok {
		request.Location = location
	}
	projectID := c.projectID
	if override, ok := arguments["projectId"].(string); ok && override != "" {
		projectID = override
	}
	c.logger.Debug("dispatching execute_sql over REST", zap.String("project", projectID))
	response, err := c.bq.Query(ctx, projectID, request)
	if err != nil {
		return nil, c.fallbackFailure(err)
	}
	if len(response.Errors) > 0 {
		return nil, newFailure(KindRemoteTool, ModeFallback, response.Errors[0].Message, nil)
	}
	return structuredResult(response)
}

func (c *Client) fallbackListDatasets(ctx context.Context, arguments map[string]interface{}) (*schema.CallToolResult, error) {
	projectID := c.projectID
	if override, ok := arguments["projectId"].(string); ok && override != "" {
		projectID = override
	}
	response, err := c.bq.ListDatasets(ctx, projectID)
	if err != nil {
		return nil, c.fallbackFailure(err)
	}
	return structuredResult(response)
}

// fallbackFailure maps REST errors onto the failure taxonomy. A 401/403
// here already survived the single refresh-and-retry cycle, so it surfaces
// as an authorization failure rather than triggering another fallback.
func (c *Client) fallbackFailure(err error) *Failure {
	apiError := &bigquery.APIError{}
	if errors.As(err, &apiError) {
		if rejected(apiError.Code) {
			return newFailure(KindAuthRequired, ModeFallback, apiError.Message, err)
		}
		return newFailure(KindRemoteTool, ModeFallback, apiError.Message, err)
	}
	return classify(err, ModeFallback)
}

// structuredResult wraps a native REST payload into the tool result shape
// the protocol path produces: structured content plus a text rendition.
func structuredResult(payload interface{}) (*schema.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, newFailure(KindProtocol, ModeFallback, "failed to encode result", err)
	}
	structured := map[string]interface{}{}
	if err = json.Unmarshal(data, &structured); err != nil {
		return nil, newFailure(KindProtocol, ModeFallback, "failed to decode result", err)
	}
	return &schema.CallToolResult{
		StructuredContent: structured,
		Content:           []schema.CallToolResultContentElem{TextElement(string(data))},
	}, nil
}

func numberArgument(arguments map[string]interface{}, key string) (int64, bool) {
	switch value := arguments[key].(type) {
	case float64:
		return int64(value), true
	case int:
		return int64(value), true
	case int64:
		return value, true
	case json.Number:
		n, err := value.Int64()
		return n, err == nil
	}
	return 0, false
}
