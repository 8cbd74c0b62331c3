// Package bigquery covers the slice of the BigQuery v2 REST API the
// fallback transport dispatches natively: synchronous query execution
// and dataset listing.
package bigquery
