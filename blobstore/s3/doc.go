// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("lexicon/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	k, err := kosha.OpenStore(ctx, store)
//
// S3 has no compare-and-swap on overwrites. Wrap the store in a DDBCommitStore
// to commit CURRENT through a DynamoDB conditional write so that two builders
// racing on the same prefix cannot both win.
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart streaming uploads with CRC32C checksums
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
