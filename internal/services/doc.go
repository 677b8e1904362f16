// Package services holds the shared error taxonomy and context carriers used by
// the external-service clients and the pipeline. Sentinel markers classify every
// failure as retryable or fatal; Wrap tags errors with stage context so the
// failure ledger can record a stable kind for each entry.
package services
