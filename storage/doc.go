// Package storage holds uploaded media and generated transcription
// artifacts behind a small object storage interface.
//
// Uploads live under "uploads/<id>/<name>" and are deleted when their
// session ends; artifacts live under "artifacts/<name>".
//
// # Backends
//
//   - storage/local: local filesystem
//   - storage/s3: Amazon S3 and S3-compatible storage
//
// # Configuration
//
//	storage:
//	  provider: "s3"
//	  bucket: "pilgi-artifacts"
//	  region: "eu-central-1"
package storage
