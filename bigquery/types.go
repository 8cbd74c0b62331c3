package bigquery

import "fmt"

// QueryRequest is the jobs.query request payload.
type QueryRequest struct {
	Query        string `json:"query"`
	UseLegacySQL bool   `json:"useLegacySql"`
	MaxResults   int64  `json:"maxResults,omitempty"`
	TimeoutMs    int64  `json:"timeoutMs,omitempty"`
	Location     string `json:"location,omitempty"`
	RequestID    string `json:"requestId,omitempty"`
	DryRun       bool   `json:"dryRun,omitempty"`
}

// QueryResponse is the jobs.query response payload: result schema plus rows.
type QueryResponse struct {
	Kind                string        `json:"kind,omitempty"`
	Schema              *TableSchema  `json:"schema,omitempty"`
	Rows                []TableRow    `json:"rows,omitempty"`
	JobComplete         bool          `json:"jobComplete"`
	JobReference        *JobReference `json:"jobReference,omitempty"`
	TotalRows           string        `json:"totalRows,omitempty"`
	TotalBytesProcessed string        `json:"totalBytesProcessed,omitempty"`
	CacheHit            bool          `json:"cacheHit,omitempty"`
	Errors              []*ErrorProto `json:"errors,omitempty"`
}

type TableSchema struct {
	Fields []*TableFieldSchema `json:"fields,omitempty"`
}

type TableFieldSchema struct {
	Name   string              `json:"name"`
	Type   string              `json:"type"`
	Mode   string              `json:"mode,omitempty"`
	Fields []*TableFieldSchema `json:"fields,omitempty"`
}

// TableRow holds one result row; cells come back in schema field order.
type TableRow struct {
	F []TableCell `json:"f"`
}

type TableCell struct {
	V interface{} `json:"v"`
}

type JobReference struct {
	ProjectID string `json:"projectId"`
	JobID     string `json:"jobId"`
	Location  string `json:"location,omitempty"`
}

// ErrorProto is a non-fatal warning or error attached to a completed job.
type ErrorProto struct {
	Reason   string `json:"reason,omitempty"`
	Location string `json:"location,omitempty"`
	Message  string `json:"message,omitempty"`
}

// DatasetList is the datasets.list response payload.
type DatasetList struct {
	Datasets      []Dataset `json:"datasets,omitempty"`
	NextPageToken string    `json:"nextPageToken,omitempty"`
}

type Dataset struct {
	ID               string           `json:"id,omitempty"`
	DatasetReference DatasetReference `json:"datasetReference"`
	Location         string           `json:"location,omitempty"`
}

type DatasetReference struct {
	ProjectID string `json:"projectId"`
	DatasetID string `json:"datasetId"`
}

// APIError is a decoded error document returned with a non-2xx status.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bigquery: %v %v: %v", e.Code, e.Status, e.Message)
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}
